package twitchdl

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ChatMetadata is the streamer and title information embedded in a
// downloaded chat replay file.
type ChatMetadata struct {
	Streamer string
	Title    string
}

const maxChatMetadataBytes = 64 << 20

var titleCaser = cases.Title(language.English, cases.NoLower)

// ReadChatMetadata extracts metadata from a gzipped chat JSON file.
func ReadChatMetadata(path string) (ChatMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return ChatMetadata{}, fmt.Errorf("open chat file: %w", err)
	}
	defer file.Close()

	reader, err := gzip.NewReader(file)
	if err != nil {
		return ChatMetadata{}, fmt.Errorf("decompress chat file: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(io.LimitReader(reader, maxChatMetadataBytes))
	if err != nil {
		return ChatMetadata{}, fmt.Errorf("read chat file: %w", err)
	}
	if !gjson.ValidBytes(payload) {
		return ChatMetadata{}, fmt.Errorf("chat file %s is not valid JSON", path)
	}

	meta := ChatMetadata{
		Streamer: strings.TrimSpace(gjson.GetBytes(payload, "streamer.name").String()),
		Title:    strings.TrimSpace(gjson.GetBytes(payload, "video.title").String()),
	}
	if meta.Streamer == "" {
		meta.Streamer = strings.TrimSpace(gjson.GetBytes(payload, "video.user_name").String())
	}
	return meta, nil
}

// StreamerLabel formats a streamer login for display.
func StreamerLabel(streamer string) string {
	streamer = strings.TrimSpace(streamer)
	if streamer == "" {
		return ""
	}
	return titleCaser.String(streamer)
}
