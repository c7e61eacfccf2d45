package handlers_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/mocks"
	"github.com/unifiedui/chat-gateway/internal/services/handlers"
)

func newFileSource(t *testing.T) *handlers.FileSource {
	t.Helper()
	src, err := handlers.NewFileSource(t.TempDir())
	require.NoError(t, err)
	return src
}

func TestFileSource_SaveConflictAndNotFound(t *testing.T) {
	// Arrange
	src := newFileSource(t)
	doc := &handlers.Document{Name: "Menu", Reply: "hi"}

	// Act
	createErr := src.Save(doc, true)
	dupErr := src.Save(&handlers.Document{Name: "menu", Reply: "again"}, true)
	missingErr := src.Save(&handlers.Document{Name: "ghost", Reply: "x"}, false)
	updateErr := src.Save(&handlers.Document{Name: "menu", Reply: "updated"}, false)

	// Assert
	require.NoError(t, createErr)
	assert.ErrorIs(t, dupErr, domainerrors.ErrHandlerExists)
	assert.ErrorIs(t, missingErr, domainerrors.ErrHandlerNotFound)
	require.NoError(t, updateErr)
	got, raw, err := src.Read("menu")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Reply)
	assert.Contains(t, string(raw), "reply: updated")
}

func TestFileSource_SaveValidation(t *testing.T) {
	// Arrange
	src := newFileSource(t)

	// Act
	noName := src.Save(&handlers.Document{Reply: "x"}, true)
	noReply := src.Save(&handlers.Document{Name: "x"}, true)
	badName := src.Save(&handlers.Document{Name: "../evil", Reply: "x"}, true)
	badTemplate := src.Save(&handlers.Document{Name: "t", Reply: "{{ .Nope "}, true)

	// Assert
	for _, err := range []error{noName, noReply, badName, badTemplate} {
		assert.True(t, domainerrors.IsValidationError(err), "%v", err)
	}
}

func TestFileSource_Delete(t *testing.T) {
	// Arrange
	src := newFileSource(t)
	require.NoError(t, src.Save(&handlers.Document{Name: "bye", Reply: "x"}, true))

	// Act
	first := src.Delete("bye")
	second := src.Delete("bye")

	// Assert
	require.NoError(t, first)
	assert.ErrorIs(t, second, domainerrors.ErrHandlerNotFound)
}

func TestFileSource_LoadSkipsInvalidFiles(t *testing.T) {
	// Arrange
	src := newFileSource(t)
	require.NoError(t, src.Save(&handlers.Document{Name: "good", Reply: "ok"}, true))
	require.NoError(t, os.WriteFile(filepath.Join(src.Dir(), "noreply.yaml"), []byte("name: noreply\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src.Dir(), "garbage.yaml"), []byte(":\n\t- ["), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src.Dir(), "notes.txt"), []byte("ignored"), 0o644))

	// Act
	list, err := src.Load(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].Name)
	assert.Equal(t, handlers.SourceFile, list[0].Source)
}

func TestFileSource_ExecuteRendersTemplate(t *testing.T) {
	// Arrange
	src := newFileSource(t)
	require.NoError(t, src.Save(&handlers.Document{
		Name:  "greet",
		Reply: "Hello {{.SenderName}}, you said: {{.ArgText}}",
	}, true))
	list, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	sender := &mocks.RecordingSender{}
	inv := &handlers.Invocation{
		Command: "greet",
		Args:    []string{"good", "morning"},
		Message: models.InboundMessage{SenderID: "1555@s.net", SenderName: "Jin"},
		Sender:  sender,
	}

	// Act
	err = list[0].Execute(context.Background(), inv)

	// Assert
	require.NoError(t, err)
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "1555@s.net", sent[0].To)
	assert.Equal(t, "Hello Jin, you said: good morning", sent[0].Msg.Text)
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	// Arrange
	src := newFileSource(t)
	reg := handlers.NewRegistry(src)
	_, err := reg.Load(context.Background())
	require.NoError(t, err)
	w, err := handlers.NewWatcher(reg, src.Dir(), 20*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Act
	require.NoError(t, src.Save(&handlers.Document{Name: "late", Reply: "x"}, true))

	// Assert
	assert.Eventually(t, func() bool {
		_, ok := reg.Get("late")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}
