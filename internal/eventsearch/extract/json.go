package extract

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"dancetonight/internal/eventsearch/core"
)

const (
	StrategyJSONFence  = "json_fence"
	StrategyAnyFence   = "any_fence"
	StrategyWholeText  = "whole_text"
	StrategyLastArray  = "last_array"
	StrategyLastObject = "last_object"
	StrategyEmpty      = "empty"
)

var (
	jsonFenceRE    = regexp.MustCompile("(?is)```json\\s*\\n?(.*?)\\n?\\s*```")
	genericFenceRE = regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\n?\\s*```")
)

type jsonStrategy struct {
	name string
	// pick returns the candidate JSON text, or "" to hand over to the next strategy.
	pick func(text string) string
}

var jsonStrategies = []jsonStrategy{
	{name: StrategyJSONFence, pick: func(text string) string { return fenceInterior(jsonFenceRE, text) }},
	{name: StrategyAnyFence, pick: func(text string) string { return fenceInterior(genericFenceRE, text) }},
	{name: StrategyWholeText, pick: pickWholeText},
	{name: StrategyLastArray, pick: func(text string) string { return pickLastEnclosed(text, '[', ']') }},
	{name: StrategyLastObject, pick: func(text string) string { return pickLastEnclosed(text, '{', '}') }},
}

// Extractor pulls raw event records out of free provider text. It never fails;
// anything unusable degrades to an empty slice and a diagnostic log entry.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract returns the records found in text.
func (e *Extractor) Extract(text string) []core.RawEventRecord {
	records, _ := e.ExtractWithStrategy(text)
	return records
}

// ExtractWithStrategy also reports the name of the strategy that located the JSON.
func (e *Extractor) ExtractWithStrategy(text string) ([]core.RawEventRecord, string) {
	trimmed := strings.TrimSpace(text)
	candidate, strategy := LocateJSON(trimmed)
	if strategy == StrategyEmpty {
		e.logger.Warn("extract_no_json", "text_len", len(trimmed))
		return []core.RawEventRecord{}, strategy
	}
	records, err := decodeRecords([]byte(candidate), e.logger)
	if err != nil {
		e.logger.Warn("extract_parse_failed", "strategy", strategy, "error", err, "candidate_len", len(candidate))
		return []core.RawEventRecord{}, strategy
	}
	return records, strategy
}

// LocateJSON runs the ordered strategies against text and returns the first
// candidate found, or "[]" with StrategyEmpty.
func LocateJSON(text string) (string, string) {
	for _, strategy := range jsonStrategies {
		if candidate := strings.TrimSpace(strategy.pick(text)); candidate != "" {
			return candidate, strategy.name
		}
	}
	return "[]", StrategyEmpty
}

func fenceInterior(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func pickWholeText(text string) string {
	if (strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")) ||
		(strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")) {
		return text
	}
	return ""
}

func pickLastEnclosed(text string, open, close byte) string {
	start := strings.LastIndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}

func decodeRecords(data []byte, logger *slog.Logger) ([]core.RawEventRecord, error) {
	var root json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	root = bytes.TrimSpace(root)
	if len(root) == 0 {
		return []core.RawEventRecord{}, nil
	}
	switch root[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(root, &items); err != nil {
			return nil, err
		}
		out := make([]core.RawEventRecord, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				logger.Warn("extract_skip_item", "index", i, "reason", "not_object")
				continue
			}
			var record core.RawEventRecord
			if err := json.Unmarshal(item, &record); err != nil {
				logger.Warn("extract_skip_item", "index", i, "error", err)
				continue
			}
			out = append(out, record)
		}
		return out, nil
	case '{':
		logger.Warn("extract_single_object", "action", "wrap")
		var record core.RawEventRecord
		if err := json.Unmarshal(root, &record); err != nil {
			return nil, err
		}
		return []core.RawEventRecord{record}, nil
	default:
		logger.Warn("extract_unexpected_json", "kind", string(root[:1]))
		return []core.RawEventRecord{}, nil
	}
}
