package client

import (
	"fmt"
	"time"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// InsertSource adds a source at position. A negative position appends.
func (a *App) InsertSource(position int, source model.Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	pos, err := a.sources.Insert(position, source)
	if err != nil {
		return fmt.Errorf("failed to insert source %q: %w", source.ID, err)
	}
	if a.observer != nil {
		a.observer.SourceAdded(pos, source)
	}
	return nil
}

// AppendSource adds a source after all existing ones.
func (a *App) AppendSource(source model.Source) error {
	return a.InsertSource(-1, source)
}

// InsertSourceWithCount adds a source showing a message count.
func (a *App) InsertSourceWithCount(position int, id, icon, label string, count uint32) error {
	return a.InsertSource(position, model.Source{ID: id, Icon: icon, Label: label, Count: count})
}

// InsertSourceWithTime adds a source showing the time of its last message.
func (a *App) InsertSourceWithTime(position int, id, icon, label string, t time.Time) error {
	return a.InsertSource(position, model.Source{ID: id, Icon: icon, Label: label, Time: t.UnixMicro()})
}

// InsertSourceWithString adds a source showing a short text.
func (a *App) InsertSourceWithString(position int, id, icon, label, str string) error {
	return a.InsertSource(position, model.Source{ID: id, Icon: icon, Label: label, String: str})
}

// RemoveSource removes a source. Removing an unknown source is not an error.
func (a *App) RemoveSource(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	a.removeSourceLocked(id)
	return nil
}

// HasSource reports whether a source with id exists.
func (a *App) HasSource(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sources.Has(id)
}

// Sources returns the current sources in menu order.
func (a *App) Sources() []model.Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sources.All()
}

// SetSourceLabel changes the label of a source.
func (a *App) SetSourceLabel(id, label string) error {
	return a.updateSource(id, func(s *model.Source) {
		s.Label = label
	})
}

// SetSourceIcon changes the icon of a source. An empty icon removes it.
func (a *App) SetSourceIcon(id, icon string) error {
	return a.updateSource(id, func(s *model.Source) {
		s.Icon = icon
	})
}

// SetSourceCount shows count next to the source, clearing time and string.
func (a *App) SetSourceCount(id string, count uint32) error {
	return a.updateSource(id, func(s *model.Source) {
		s.Count, s.Time, s.String = count, 0, ""
	})
}

// SetSourceTime shows t next to the source, clearing count and string.
func (a *App) SetSourceTime(id string, t time.Time) error {
	return a.updateSource(id, func(s *model.Source) {
		s.Count, s.Time, s.String = 0, t.UnixMicro(), ""
	})
}

// SetSourceString shows str next to the source, clearing count and time.
func (a *App) SetSourceString(id, str string) error {
	return a.updateSource(id, func(s *model.Source) {
		s.Count, s.Time, s.String = 0, 0, str
	})
}

// DrawAttention marks the source as needing the user's attention.
func (a *App) DrawAttention(id string) error {
	return a.updateSource(id, func(s *model.Source) {
		s.DrawsAttention = true
	})
}

// RemoveAttention clears the attention mark of a source.
func (a *App) RemoveAttention(id string) error {
	return a.updateSource(id, func(s *model.Source) {
		s.DrawsAttention = false
	})
}

// ActivateSource handles the user activating a source: the source is
// removed and the activate handler is called.
func (a *App) ActivateSource(id string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if !a.removeSourceLocked(id) {
		a.mu.Unlock()
		return fmt.Errorf("failed to activate source %q: %w", id, model.ErrSourceNotFound)
	}
	handler := a.onActivate
	a.mu.Unlock()

	a.logger.Debug("source activated", "app_id", a.id, "source_id", id)
	if handler != nil {
		handler(id)
	}
	return nil
}

// DismissSources removes sources the user dismissed without activating them.
// Unknown ids are skipped.
func (a *App) DismissSources(ids []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	for _, id := range ids {
		a.removeSourceLocked(id)
	}
	return nil
}

func (a *App) updateSource(id string, fn func(*model.Source)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	updated, err := a.sources.Update(id, fn)
	if err != nil {
		return fmt.Errorf("failed to update source %q: %w", id, err)
	}
	if a.observer != nil {
		a.observer.SourceChanged(updated)
	}
	return nil
}

func (a *App) removeSourceLocked(id string) bool {
	if _, err := a.sources.Remove(id); err != nil {
		return false
	}
	if a.observer != nil {
		a.observer.SourceRemoved(id)
	}
	return true
}
