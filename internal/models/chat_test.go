package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/database/testutil"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
)

func createChatOwner(t *testing.T) *models.User {
	t.Helper()
	return &models.User{
		Email:    "owner@example.com",
		Password: "not-a-real-hash",
		Name:     "Owner",
		IsActive: true,
	}
}

func TestChatTitleDerivedFromFirstUserMessage(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := createChatOwner(t)
	require.NoError(t, db.Create(owner).Error)

	chat := &models.Chat{UserID: owner.ID}
	chat.AppendMessage(models.ChatMessage{Text: "Explain quicksort partitioning", IsUser: true})

	require.NoError(t, db.Create(chat).Error)
	require.Equal(t, "Explain quicksort partitioning", chat.Title)
}

func TestChatTitleDefaultsWhenFirstMessageIsBot(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := createChatOwner(t)
	require.NoError(t, db.Create(owner).Error)

	chat := &models.Chat{UserID: owner.ID}
	chat.AppendMessage(models.ChatMessage{Text: "Hello! How can I help?", IsUser: false})

	require.NoError(t, db.Create(chat).Error)
	require.Equal(t, "New Chat", chat.Title)
}

func TestChatExplicitTitlePreserved(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := createChatOwner(t)
	require.NoError(t, db.Create(owner).Error)

	chat := &models.Chat{UserID: owner.ID, Title: "Graph revision"}
	chat.AppendMessage(models.ChatMessage{Text: "What is Dijkstra?", IsUser: true})

	require.NoError(t, db.Create(chat).Error)
	require.Equal(t, "Graph revision", chat.Title)
}

func TestTitleFromMessageTruncation(t *testing.T) {
	long := strings.Repeat("a", 80)
	title := models.TitleFromMessage(long)
	require.True(t, strings.HasSuffix(title, "..."))
	require.LessOrEqual(t, len([]rune(title)), 53)

	short := models.TitleFromMessage("  short question  ")
	require.Equal(t, "short question", short)
}

func TestAppendMessageFillsDefaults(t *testing.T) {
	chat := &models.Chat{}
	chat.AppendMessage(models.ChatMessage{Text: "hi", IsUser: true})

	msg := chat.LastMessage()
	require.NotNil(t, msg)
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.Timestamp.IsZero())
	require.Equal(t, 1, chat.MessageCount())
}

func TestChatMessagesSurviveRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := createChatOwner(t)
	require.NoError(t, db.Create(owner).Error)

	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	chat := &models.Chat{UserID: owner.ID}
	chat.AppendMessage(models.ChatMessage{ID: "m1", Text: "first", IsUser: true, Timestamp: stamp})
	chat.AppendMessage(models.ChatMessage{ID: "m2", Text: "second", IsUser: false, Timestamp: stamp})
	require.NoError(t, db.Create(chat).Error)

	var loaded models.Chat
	require.NoError(t, db.Take(&loaded, "id = ?", chat.ID).Error)
	require.Equal(t, 2, loaded.MessageCount())
	require.Equal(t, "m1", loaded.Messages[0].ID)
	require.True(t, loaded.Messages[1].IsUser == false)
}
