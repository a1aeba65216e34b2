package entity

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Embed is the stored form of a rich message embed. Only the fields below are
// kept.
type Embed struct {
	Type        string         `json:"type,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`
	Color       int            `json:"color,omitempty"`
	Footer      *EmbedFooter   `json:"footer,omitempty"`
	Image       *EmbedMedia    `json:"image,omitempty"`
	Thumbnail   *EmbedMedia    `json:"thumbnail,omitempty"`
	Video       *EmbedMedia    `json:"video,omitempty"`
	Provider    *EmbedProvider `json:"provider,omitempty"`
	Author      *EmbedAuthor   `json:"author,omitempty"`
	Fields      []EmbedField   `json:"fields,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedMedia struct {
	URL      string `json:"url"`
	ProxyURL string `json:"proxy_url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type EmbedProvider struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

func NewEmbedFromDiscord(e *discordgo.MessageEmbed) Embed {
	out := Embed{
		Type:        string(e.Type),
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Color:       e.Color,
	}
	if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		t = t.UTC()
		out.Timestamp = &t
	}
	if e.Footer != nil {
		out.Footer = &EmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}
	if e.Image != nil {
		out.Image = &EmbedMedia{URL: e.Image.URL, ProxyURL: e.Image.ProxyURL, Width: e.Image.Width, Height: e.Image.Height}
	}
	if e.Thumbnail != nil {
		out.Thumbnail = &EmbedMedia{URL: e.Thumbnail.URL, ProxyURL: e.Thumbnail.ProxyURL, Width: e.Thumbnail.Width, Height: e.Thumbnail.Height}
	}
	if e.Video != nil {
		out.Video = &EmbedMedia{URL: e.Video.URL, Width: e.Video.Width, Height: e.Video.Height}
	}
	if e.Provider != nil {
		out.Provider = &EmbedProvider{Name: e.Provider.Name, URL: e.Provider.URL}
	}
	if e.Author != nil {
		out.Author = &EmbedAuthor{Name: e.Author.Name, URL: e.Author.URL, IconURL: e.Author.IconURL}
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		out.Fields = append(out.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

// encodeEmbeds returns the JSON column value, NULL for no embeds.
func encodeEmbeds(es []Embed) (any, error) {
	if len(es) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(es)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeEmbeds(b []byte) ([]Embed, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var es []Embed
	if err := json.Unmarshal(b, &es); err != nil {
		return nil, err
	}
	return es, nil
}
