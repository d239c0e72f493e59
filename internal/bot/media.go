package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photo_sync_bot/internal/pkg/media"
	"photo_sync_bot/internal/pkg/pipeline"
)

// mediaItemFromMessage converts a group message carrying a photo,
// video, or video note into a pipeline item. Anything else reports
// ok=false.
func mediaItemFromMessage(msg *tgbotapi.Message) (pipeline.MediaItem, bool) {
	if msg.Chat == nil || !(msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		return pipeline.MediaItem{}, false
	}

	item := pipeline.MediaItem{
		GroupID:    msg.Chat.ID,
		GroupTitle: groupTitle(msg.Chat),
		MessageID:  int64(msg.MessageID),
	}

	switch {
	case len(msg.Photo) > 0:
		// The last rendition is the full-size one.
		photo := msg.Photo[len(msg.Photo)-1]
		item.Kind = media.KindPhoto
		item.FileID = photo.FileID
		item.DeclaredSize = int64(photo.FileSize)
		item.MimeType = "image/jpeg"

	case msg.Video != nil:
		item.Kind = media.KindVideo
		item.FileID = msg.Video.FileID
		item.DeclaredSize = int64(msg.Video.FileSize)
		item.FileName = msg.Video.FileName
		item.MimeType = msg.Video.MimeType
		if item.MimeType == "" {
			item.MimeType = "video/mp4"
		}

	case msg.VideoNote != nil:
		item.Kind = media.KindCircularVideo
		item.FileID = msg.VideoNote.FileID
		item.DeclaredSize = int64(msg.VideoNote.FileSize)
		item.MimeType = "video/mp4"

	default:
		return pipeline.MediaItem{}, false
	}

	return item, true
}

func groupTitle(chat *tgbotapi.Chat) string {
	if strings.TrimSpace(chat.Title) == "" {
		return fmt.Sprintf("Chat_%d", chat.ID)
	}
	return chat.Title
}
