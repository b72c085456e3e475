package model

import (
	"fmt"
	"time"
)

// Document field keys as stored in an intention partition.
const (
	FieldText          = "text"
	FieldAudioRecorded = "audioRecorded"
	FieldAudioDuration = "audioDuration"
	FieldImageURL      = "imageUrl"
	FieldIsManifested  = "isManifested"
	FieldCreatedAt     = "createdAt"
)

type Intention struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	AudioRecorded bool      `json:"audioRecorded"`
	AudioDuration int       `json:"audioDuration"`
	ImageURL      *string   `json:"imageUrl"`
	IsManifested  bool      `json:"isManifested"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Document is a raw record as the store delivers it. Values keep whatever
// type the backend produced; IntentionFromDocument normalizes them.
type Document struct {
	ID   string
	Data map[string]any
}

// IntentionFromDocument materializes a store document into an Intention.
// createdAt accepts server timestamps, numeric unix-millisecond fallbacks
// and timestamp strings.
func IntentionFromDocument(doc Document) (Intention, error) {
	if doc.ID == "" {
		return Intention{}, fmt.Errorf("document has no id")
	}

	createdAt, err := ParseTimestamp(doc.Data[FieldCreatedAt])
	if err != nil {
		return Intention{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}

	intention := Intention{
		ID:            doc.ID,
		Text:          asString(doc.Data[FieldText]),
		AudioRecorded: asBool(doc.Data[FieldAudioRecorded]),
		AudioDuration: asInt(doc.Data[FieldAudioDuration]),
		IsManifested:  asBool(doc.Data[FieldIsManifested]),
		CreatedAt:     createdAt,
	}

	if image := asString(doc.Data[FieldImageURL]); image != "" {
		intention.ImageURL = &image
	}

	return intention, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case *string:
		if t != nil {
			return *t
		}
	}
	return ""
}

// asBool accepts the integer booleans SQLite hands back.
func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t == "1" || t == "true"
	case []byte:
		s := string(t)
		return s == "1" || s == "true"
	}
	return false
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

// IntentionRecord is the SQL row for an intention. A nil CreatedAt is
// stamped by the database clock on insert.
type IntentionRecord struct {
	ID            string     `db:"id"`
	AppID         string     `db:"app_id"`
	UserID        string     `db:"user_id"`
	Text          string     `db:"text"`
	AudioRecorded bool       `db:"audio_recorded"`
	AudioDuration int        `db:"audio_duration"`
	ImageURL      *string    `db:"image_url"`
	IsManifested  bool       `db:"is_manifested"`
	CreatedAt     *time.Time `db:"created_at"`
}
