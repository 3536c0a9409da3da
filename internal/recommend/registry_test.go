// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		model   Model
		wantErr bool
	}{
		{"sampling users", newFakeModel("random", KindSampling, TargetUser), false},
		{"sampling items", newFakeModel("random_item", KindSampling, TargetItem), false},
		{"similarity items", newFakeModel("item_similarity", KindSimilarity, TargetItem), false},
		{"similarity users rejected", newFakeModel("user_similarity", KindSimilarity, TargetUser), true},
		{"unknown kind rejected", newFakeModel("odd", ModelKind(7), TargetUser), true},
		{"bad target rejected", newFakeModel("odd", KindSampling, TargetType("movie")), true},
		{"empty name rejected", newFakeModel("", KindSampling, TargetUser), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(zerolog.Nop())
			err := r.Register(tt.model)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.MustRegister(newFakeModel("random", KindSampling, TargetUser))
	if err := r.Register(newFakeModel("random", KindSampling, TargetItem)); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestRegistry_Sealed(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Seal()
	if err := r.Register(newFakeModel("random", KindSampling, TargetUser)); err == nil {
		t.Error("expected error registering into sealed registry")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.MustRegister(newFakeModel("random", KindSampling, TargetUser))
	r.MustRegister(newFakeModel("item_similarity", KindSimilarity, TargetItem))

	t.Run("preserves order and drops repeats", func(t *testing.T) {
		models, err := r.Resolve([]string{"item_similarity", "random", "item_similarity"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if len(models) != 2 || models[0].Name() != "item_similarity" || models[1].Name() != "random" {
			t.Errorf("Resolve() = %v", models)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.Resolve([]string{"random", "popularity"})
		var unknown *UnknownModelError
		if !errors.As(err, &unknown) {
			t.Fatalf("Resolve() error = %v, want *UnknownModelError", err)
		}
		if unknown.Name != "popularity" {
			t.Errorf("UnknownModelError.Name = %q, want popularity", unknown.Name)
		}
		if len(unknown.Available) != 2 {
			t.Errorf("UnknownModelError.Available = %v", unknown.Available)
		}
	})

	t.Run("names sorted", func(t *testing.T) {
		names := r.Names()
		if len(names) != 2 || names[0] != "item_similarity" || names[1] != "random" {
			t.Errorf("Names() = %v", names)
		}
	})
}
