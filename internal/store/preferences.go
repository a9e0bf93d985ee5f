package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/todo-client/internal/model"
)

// Preference keys in the kv table.
const (
	PrefRememberEmail   = "pref.remember_email"
	PrefFilterPriority  = "pref.filter.priority"
	PrefFilterStatus    = "pref.filter.status"
	PrefGroupByPriority = "pref.group_by_priority"
)

// LoadPreferences reads the persisted preferences. Missing keys keep their
// zero value.
func LoadPreferences(ctx context.Context, s Store) (model.Preferences, error) {
	values, err := s.GetValues(ctx,
		PrefRememberEmail, PrefFilterPriority, PrefFilterStatus, PrefGroupByPriority)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("loading preferences: %w", err)
	}

	prefs := model.Preferences{
		RememberEmail:  values[PrefRememberEmail],
		FilterPriority: values[PrefFilterPriority],
		FilterStatus:   values[PrefFilterStatus],
	}
	if raw, ok := values[PrefGroupByPriority]; ok {
		prefs.GroupByPriority, _ = strconv.ParseBool(raw)
	}
	return prefs, nil
}

// SavePreferences writes all preferences in one transaction. An empty
// remembered email removes the key.
func SavePreferences(ctx context.Context, s Store, writer string, prefs model.Preferences) error {
	values := map[string]string{
		PrefFilterPriority:  prefs.FilterPriority,
		PrefFilterStatus:    prefs.FilterStatus,
		PrefGroupByPriority: strconv.FormatBool(prefs.GroupByPriority),
	}
	if prefs.RememberEmail != "" {
		values[PrefRememberEmail] = prefs.RememberEmail
	}
	if _, err := s.SetValues(ctx, writer, values); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	if prefs.RememberEmail == "" {
		if _, err := s.DeleteValues(ctx, writer, PrefRememberEmail); err != nil {
			return fmt.Errorf("forgetting email: %w", err)
		}
	}
	return nil
}
