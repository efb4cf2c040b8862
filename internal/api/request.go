package api

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vodstitch/internal/queue"
	"vodstitch/internal/services"
)

var (
	vodIDPattern = regexp.MustCompile(`^\d+$`)
	timePattern  = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}$`)
	colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
)

// Request defaults and clamp bounds for job creation.
const (
	defaultQuality    = "1080p60"
	defaultThreads    = 2
	minThreads        = 1
	maxThreads        = 4
	minBandwidthKiB   = 64
	maxBandwidthKiB   = 20000
	defaultChatWidth  = 422
	minChatWidth      = 250
	maxChatWidth      = 900
	chatHeight        = 1080
	defaultFontSize   = 18
	minFontSize       = 10
	maxFontSize       = 52
	defaultFramerate  = 30
	minFramerate      = 10
	maxFramerate      = 60
	defaultUpdateRate = 0.2
	maxUpdateRate     = 2.0
	defaultColor      = "#111111"
)

// FlexNumber is a JSON number that also accepts quoted values, matching what
// browser form submissions tend to send ("2" and 2 are both fine).
type FlexNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*n = ""
		return nil
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		*n = FlexNumber(strings.TrimSpace(unquoted))
		return nil
	}
	*n = FlexNumber(trimmed)
	return nil
}

// FlexBool accepts true/false as JSON booleans or as strings.
type FlexBool struct {
	set   bool
	value bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		b.set = true
		b.value = strings.EqualFold(strings.TrimSpace(unquoted), "true")
		return nil
	}
	var parsed bool
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	b.set = true
	b.value = parsed
	return nil
}

// FlexBoolOf returns a FlexBool carrying an explicit value.
func FlexBoolOf(value bool) FlexBool {
	return FlexBool{set: true, value: value}
}

// Or returns the decoded value, or fallback when the field was absent.
func (b FlexBool) Or(fallback bool) bool {
	if !b.set {
		return fallback
	}
	return b.value
}

// CreateJobRequest is the inbound payload for queuing a download.
type CreateJobRequest struct {
	VodID           string     `json:"vod_id"`
	Quality         string     `json:"quality"`
	Threads         FlexNumber `json:"threads"`
	Bandwidth       FlexNumber `json:"bandwidth"`
	Beginning       string     `json:"beginning"`
	Ending          string     `json:"ending"`
	IncludeChat     FlexBool   `json:"include_chat"`
	ChatWidth       FlexNumber `json:"chat_width"`
	FontSize        FlexNumber `json:"font_size"`
	Framerate       FlexNumber `json:"framerate"`
	UpdateRate      FlexNumber `json:"update_rate"`
	BackgroundColor string     `json:"background_color"`
	Outline         FlexBool   `json:"outline"`
}

// DecodeCreateJobRequest parses a request body.
func DecodeCreateJobRequest(raw []byte) (CreateJobRequest, error) {
	var req CreateJobRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return CreateJobRequest{}, badRequest("request body must be a JSON object")
	}
	return req, nil
}

// Validate normalizes the request into persisted job parameters.
func (r CreateJobRequest) Validate() (string, queue.Params, error) {
	vodID := strings.TrimSpace(r.VodID)
	if !vodIDPattern.MatchString(vodID) {
		return "", queue.Params{}, badRequest("vod_id must be numeric")
	}

	params := queue.Params{
		Quality:    strings.TrimSpace(r.Quality),
		ChatHeight: chatHeight,
	}
	if params.Quality == "" {
		params.Quality = defaultQuality
	}

	threads, err := intField(r.Threads, "threads", defaultThreads)
	if err != nil {
		return "", queue.Params{}, err
	}
	params.Threads = clampInt(threads, minThreads, maxThreads)

	if strings.TrimSpace(string(r.Bandwidth)) != "" {
		bandwidth, err := intField(r.Bandwidth, "bandwidth", 0)
		if err != nil {
			return "", queue.Params{}, badRequest("bandwidth must be a number (KiB/s)")
		}
		params.BandwidthKiB = clampInt(bandwidth, minBandwidthKiB, maxBandwidthKiB)
	}

	params.Beginning, err = optionalTime(r.Beginning)
	if err != nil {
		return "", queue.Params{}, err
	}
	params.Ending, err = optionalTime(r.Ending)
	if err != nil {
		return "", queue.Params{}, err
	}

	params.IncludeChat = r.IncludeChat.Or(true)

	chatWidth, err := intField(r.ChatWidth, "chat_width", defaultChatWidth)
	if err != nil {
		return "", queue.Params{}, err
	}
	params.ChatWidth = clampInt(chatWidth, minChatWidth, maxChatWidth)

	fontSize, err := intField(r.FontSize, "font_size", defaultFontSize)
	if err != nil {
		return "", queue.Params{}, err
	}
	params.FontSize = clampInt(fontSize, minFontSize, maxFontSize)

	framerate, err := intField(r.Framerate, "framerate", defaultFramerate)
	if err != nil {
		return "", queue.Params{}, err
	}
	params.Framerate = clampInt(framerate, minFramerate, maxFramerate)

	updateRate := defaultUpdateRate
	if raw := strings.TrimSpace(string(r.UpdateRate)); raw != "" {
		updateRate, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", queue.Params{}, badRequest("update_rate must be a number")
		}
	}
	params.UpdateRate = clampFloat(updateRate, 0, maxUpdateRate)

	params.BackgroundColor, err = normalizeColor(r.BackgroundColor)
	if err != nil {
		return "", queue.Params{}, err
	}

	params.Outline = r.Outline.Or(false)

	return vodID, params, nil
}

func badRequest(message string) error {
	return fmt.Errorf("%w: %s", services.ErrValidation, message)
}

func intField(value FlexNumber, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(string(value))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be a number")
	}
	return parsed, nil
}

func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func clampFloat(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// optionalTime accepts empty or placeholder values as unset and otherwise
// requires H:MM:SS or HH:MM:SS.
func optionalTime(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "", "none", "null", "undefined":
		return "", nil
	}
	if !timePattern.MatchString(trimmed) {
		return "", badRequest("beginning/ending must look like HH:MM:SS (example 02:00:00)")
	}
	return trimmed, nil
}

func normalizeColor(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultColor, nil
	}
	if !colorPattern.MatchString(trimmed) {
		return "", badRequest("background_color must be like #RRGGBB or #AARRGGBB")
	}
	return trimmed, nil
}
