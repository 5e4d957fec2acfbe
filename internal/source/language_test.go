package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage_KeywordStage(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"Movie.English.srt", "eng"},
		{"movie.HINDI.vtt", "hin"},
		{"show.tamil.ass", "tam"},
		{"pelicula.spanish.srt", "spa"},
		{"film.french.sub", "fra"},
		{"film.german.srt", "deu"},
		{"filme.portuguese.srt", "por"},
		{"kino.russian.srt", "rus"},
		{"eiga.japanese.srt", "jpn"},
		{"dianying.chinese.srt", "zho"},
		{"film.arabic.srt", "ara"},
		{"nang.thai.srt", "tha"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.filename), tt.filename)
	}
}

func TestDetectLanguage_ISOTagStage(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"movie.en.srt", "eng"},
		{"movie.hi_forced.srt", "hin"},
		{"movie.es-la.srt", "spa"},
		{"movie.zh.vtt", "zho"},
		{"movie.pt.srt", "por"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.filename), tt.filename)
	}
}

func TestDetectLanguage_KeywordWinsOverTag(t *testing.T) {
	// Stage one matches before the ISO tag is consulted.
	assert.Equal(t, "eng", DetectLanguage("movie.english.fr.srt"))
}

func TestDetectLanguage_Unknown(t *testing.T) {
	assert.Equal(t, LanguageUnknown, DetectLanguage("movie.srt"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("movie.xx.srt"))
}

func TestIsPlayable(t *testing.T) {
	assert.True(t, IsPlayable("video.MP4"))
	assert.True(t, IsPlayable("video.mkv"))
	assert.True(t, IsPlayable("clip.webm"))
	assert.False(t, IsPlayable("notes.txt"))
	assert.False(t, IsPlayable("archive.rar"))
}

func TestIsSubtitle(t *testing.T) {
	assert.True(t, IsSubtitle("movie.srt"))
	assert.True(t, IsSubtitle("movie.VTT"))
	assert.True(t, IsSubtitle("movie.json"))
	assert.False(t, IsSubtitle("movie.mp4"))
}
