// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := New(KindValidation, "explanation is empty")
	assert.Equal(t, "explanation is empty", err.Error())

	wrapped := Wrap(err, KindInternal, "build alert")
	assert.Equal(t, "build alert: explanation is empty", wrapped.Error())
	assert.Nil(t, Wrap(nil, KindInternal, "nothing"))
}

func TestGetKind(t *testing.T) {
	err := New(KindValidation, "bad")
	assert.Equal(t, KindValidation, GetKind(err))
	assert.Equal(t, KindInternal, GetKind(Wrap(err, KindInternal, "outer")))
	assert.Equal(t, KindUnknown, GetKind(errors.New("std")))
	assert.Equal(t, KindTimeout, GetKind(fmt.Errorf("ctx: %w", New(KindTimeout, "slow"))))
}

func TestAttributes(t *testing.T) {
	err := Attr(New(KindInternal, "insert failed"), "table", "event_queue")
	err = Attr(err, "id", "abc")
	wrapped := Attr(Wrap(err, KindInternal, "enqueue"), "op", "enqueue")

	attrs := GetAttributes(wrapped)
	assert.Equal(t, "event_queue", attrs["table"])
	assert.Equal(t, "abc", attrs["id"])
	assert.Equal(t, "enqueue", attrs["op"])
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", New(KindUnavailable, "backend down"), true},
		{"timeout", Wrap(errors.New("i/o"), KindTimeout, "ip neigh"), true},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), true},
		{"internal", New(KindInternal, "disk full"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
