package core

import (
	"strconv"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// LookupByID finds a registration by desktop id.
// Returns nil if not found.
func LookupByID(apps []model.Application, id string) *model.Application {
	for i := range apps {
		if apps[i].ID == id {
			return &apps[i]
		}
	}
	return nil
}

// LookupByIndex finds a registration by its 1-based index.
// Returns nil if index is out of bounds.
func LookupByIndex(apps []model.Application, index int) *model.Application {
	idx := index - 1
	if idx < 0 || idx >= len(apps) {
		return nil
	}
	return &apps[idx]
}

// Lookup resolves a 1-based index or a desktop id.
func Lookup(apps []model.Application, ref string) *model.Application {
	if index, err := strconv.Atoi(ref); err == nil {
		return LookupByIndex(apps, index)
	}
	return LookupByID(apps, ref)
}
