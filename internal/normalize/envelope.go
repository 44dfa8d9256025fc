package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ParseResponse decodes a response body into a Raw object. Gateway style
// envelopes ({"statusCode": 200, "body": "<json>"}) are unwrapped, whether the
// body is a JSON string or an embedded object. A non-2xx envelope is reported
// as a malformed response carrying the service's error message.
func ParseResponse(data []byte) (Raw, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, malformed(conceptResponseBody, "response body is empty")
	}

	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil, malformed(conceptResponseBody, "invalid JSON: %v", err)
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, malformed(conceptResponseBody, "expected a JSON object, got %T", decoded)
	}

	return unwrapEnvelope(obj)
}

func unwrapEnvelope(obj map[string]interface{}) (Raw, error) {
	body, hasBody := obj["body"]
	_, hasStatus := obj["statusCode"]
	if !hasBody {
		return Raw(obj), nil
	}
	if !hasStatus {
		// Without a status code, "body" only counts as an envelope when it
		// holds a JSON string or an object.
		switch body.(type) {
		case string, map[string]interface{}:
		default:
			return Raw(obj), nil
		}
	}

	var inner map[string]interface{}
	switch b := body.(type) {
	case string:
		text := strings.TrimSpace(b)
		if text == "" {
			return nil, malformed(conceptEnvelope, "envelope body is empty")
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return nil, malformed(conceptEnvelope, "envelope body is not valid JSON: %v", err)
		}
		m, ok := decoded.(map[string]interface{})
		if !ok {
			if msg, isMsg := decoded.(string); isMsg && hasStatus {
				inner = map[string]interface{}{"error": msg}
				break
			}
			return nil, malformed(conceptEnvelope, "envelope body is %T, expected an object", decoded)
		}
		inner = m
	case map[string]interface{}:
		inner = b
	case nil:
		return nil, malformed(conceptEnvelope, "envelope body is null")
	default:
		return nil, malformed(conceptEnvelope, "envelope body is %T, expected an object or JSON string", body)
	}

	if status, ok := envelopeStatus(obj["statusCode"]); ok && (status < 200 || status >= 300) {
		msg, _ := inner["error"].(string)
		if msg == "" {
			msg = "no error message"
		}
		return nil, malformed(conceptEnvelope, "service returned status %d: %s", status, msg)
	}

	return Raw(inner), nil
}

// envelopeStatus reads statusCode as a number or a numeric string.
func envelopeStatus(v interface{}) (int, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	f, ok := toFloat(v)
	return int(f), ok
}
