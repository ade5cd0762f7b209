package openai

import "strings"

const defaultImageMIME = "image/jpeg"

// RemoveBase64Prefix strips a leading "data:<mime>;base64," header.
func RemoveBase64Prefix(imageBase64 string) string {
	_, payload := splitDataURL(imageBase64)
	return payload
}

func splitDataURL(raw string) (mime, payload string) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return defaultImageMIME, raw
	}
	header, payload, found := strings.Cut(raw, ",")
	if !found {
		return defaultImageMIME, raw
	}
	mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if mime == "" {
		mime = defaultImageMIME
	}
	return mime, payload
}

func imageDataURL(imageBase64 string) string {
	mime, payload := splitDataURL(imageBase64)
	return "data:" + mime + ";base64," + payload
}
