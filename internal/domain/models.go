package domain

import "time"

// HourCategory — двухчасовой интервал суток в формате "HH-HH".
type HourCategory string

// HourCategories перечисляет все 12 интервалов в порядке следования.
var HourCategories = [...]HourCategory{
	"00-02", "02-04", "04-06", "06-08", "08-10", "10-12",
	"12-14", "14-16", "16-18", "18-20", "20-22", "22-24",
}

// HourCategoryOf возвращает интервал, в который попадает время t.
func HourCategoryOf(t time.Time) HourCategory {
	return HourCategories[t.Hour()/2]
}

// MediaType — тип вложения, распознанный по тексту-заглушке.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaGIF      MediaType = "gif"
	MediaDocument MediaType = "document"
	MediaSticker  MediaType = "sticker"
	MediaOther    MediaType = "other"
	MediaUnknown  MediaType = "unknown"
)

// MessageRecord — одно сообщение из экспорта чата.
// После разбора запись не изменяется; MediaType заполнен только при IsMedia.
type MessageRecord struct {
	Timestamp    time.Time    `json:"timestamp"`
	Weekday      time.Weekday `json:"weekday"`
	HourCategory HourCategory `json:"hour_category"`
	User         string       `json:"user"`
	Text         string       `json:"text"`
	Length       int          `json:"length"`
	IsMedia      bool         `json:"is_media"`
	MediaType    MediaType    `json:"media_type,omitempty"`
	IsSystem     bool         `json:"is_system"`
}

// Media возвращает тип вложения и признак его наличия.
func (m MessageRecord) Media() (MediaType, bool) {
	if !m.IsMedia {
		return "", false
	}
	return m.MediaType, true
}

// Date возвращает календарную дату сообщения (полночь того же дня).
func (m MessageRecord) Date() time.Time {
	return CivilDate(m.Timestamp)
}

// CivilDate отбрасывает время суток, сохраняя календарную дату.
func CivilDate(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// ChatMetadata — сводные данные о чате, вычисленные по списку сообщений.
type ChatMetadata struct {
	TotalMessages int               `json:"total_messages"`
	Users         []string          `json:"users"`
	UserMapping   map[string]string `json:"user_mapping"`
	StartDate     time.Time         `json:"start_date"`
	EndDate       time.Time         `json:"end_date"`
	MediaCount    int               `json:"media_count"`
	MediaByType   map[MediaType]int `json:"media_by_type"`
	MediaByUser   map[string]int    `json:"media_by_user"`
}

// Sentiment — оценки тональности лексического анализатора.
// Compound лежит в диапазоне [-1, 1].
type Sentiment struct {
	Negative float64 `json:"neg"`
	Neutral  float64 `json:"neu"`
	Positive float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// EnrichedRecord — копия MessageRecord с оценками классификатора и тональности.
// Оценки присутствуют только у текстовых (не медиа и не системных) сообщений.
type EnrichedRecord struct {
	MessageRecord
	Emotions  *EmotionScores `json:"emotions,omitempty"`
	Sentiment *Sentiment     `json:"sentiment,omitempty"`
}

// Scored сообщает, были ли у записи получены оценки.
func (r EnrichedRecord) Scored() bool {
	return r.Emotions != nil
}

// PartOfSpeech — универсальный тег части речи.
type PartOfSpeech string

const (
	PosNoun       PartOfSpeech = "NOUN"
	PosProperNoun PartOfSpeech = "PROPN"
	PosVerb       PartOfSpeech = "VERB"
	PosAux        PartOfSpeech = "AUX"
	PosAdjective  PartOfSpeech = "ADJ"
	PosAdverb     PartOfSpeech = "ADV"
	PosOther      PartOfSpeech = "OTHER"
)

// IsContent сообщает, относится ли тег к знаменательным частям речи.
func (p PartOfSpeech) IsContent() bool {
	switch p {
	case PosNoun, PosVerb, PosAdjective, PosAdverb:
		return true
	}
	return false
}

// Token — лемма и часть речи, возвращаемые нормализатором.
type Token struct {
	Lemma string
	POS   PartOfSpeech
}
