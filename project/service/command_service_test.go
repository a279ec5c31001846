package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pin-bot/project/domain"
)

func TestCommandService_Register(t *testing.T) {
	reg := &fakeRegistrar{}
	cs := NewCommandService(reg, testLogger())

	ref := domain.MessageRef{TeamID: "T1", ChannelID: "C1"}
	text, err := cs.Handle(context.Background(), domain.CommandEvent{Name: " Register ", Ref: ref, UserID: "U1"})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.Equal(t, []domain.MessageRef{ref}, reg.calls)
}

func TestCommandService_RegisterFailure(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("missing access")}
	cs := NewCommandService(reg, testLogger())

	_, err := cs.Handle(context.Background(), domain.CommandEvent{Name: CommandRegister})
	assert.ErrorIs(t, err, reg.err)
}

func TestCommandService_Unknown(t *testing.T) {
	reg := &fakeRegistrar{}
	cs := NewCommandService(reg, testLogger())

	_, err := cs.Handle(context.Background(), domain.CommandEvent{Name: "pin"})
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Empty(t, reg.calls)
}
