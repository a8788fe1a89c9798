package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codyseavey/tcg-binder/internal/models"
)

const (
	maxBinderSlugLength = 40
	defaultBinderSlug   = "binder"
	binderIDSuffixLen   = 8
)

// CreateEmptyBinder returns a default-capacity binder with a full scaffold of empty sheets
func CreateEmptyBinder(name string, focusTags []string) models.Binder {
	return CreateBinderWithCapacity(name, focusTags, models.DefaultBinderCapacity)
}

// CreateBinderWithCapacity returns an empty binder sized for capacity slots (<= 0 means the default)
func CreateBinderWithCapacity(name string, focusTags []string, capacity int) models.Binder {
	if capacity <= 0 {
		capacity = models.DefaultBinderCapacity
	}
	if focusTags == nil {
		focusTags = []string{}
	}

	now := time.Now()
	return models.Binder{
		ID:           GenerateBinderID(name),
		Name:         strings.TrimSpace(name),
		FocusTags:    append([]string{}, focusTags...),
		Capacity:     capacity,
		Sheets:       emptySheets(models.SheetCount(capacity)),
		ValueHistory: []models.BinderValuePoint{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func emptySheets(count int) []models.BinderSheet {
	sheets := make([]models.BinderSheet, count)
	for i := range sheets {
		sheets[i] = models.EmptySheet(i)
	}
	return sheets
}

// GenerateBinderID slugifies name and appends a short random suffix, e.g. "my-first-binder-1a2b3c4d"
func GenerateBinderID(name string) string {
	slug := Slugify(name)
	if slug == "" {
		slug = defaultBinderSlug
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:binderIDSuffixLen]
	return slug + "-" + suffix
}

// Slugify lowercases s and collapses every run of non-alphanumeric characters into one "-".
// The result has no leading or trailing separator and is capped at 40 characters.
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	slug := b.String()
	if len(slug) > maxBinderSlugLength {
		slug = strings.TrimRight(slug[:maxBinderSlugLength], "-")
	}
	return slug
}
