package formatter

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/earthquake-city/quake-alerts/internal/models"
)

const batchLimit = 10

// SlackMessage is an incoming-webhook payload
type SlackMessage struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock is one Block Kit block
type SlackBlock struct {
	Type     string         `json:"type"`
	Text     *SlackText     `json:"text,omitempty"`
	Elements []SlackElement `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackElement is a button inside an actions block
type SlackElement struct {
	Type string    `json:"type"`
	Text SlackText `json:"text"`
	URL  string    `json:"url"`
}

func plainText(s string) *SlackText { return &SlackText{Type: "plain_text", Text: s} }

func mrkdwn(s string) *SlackText { return &SlackText{Type: "mrkdwn", Text: s} }

func button(label, url string) SlackElement {
	return SlackElement{Type: "button", Text: *plainText(label), URL: url}
}

// RichMessage renders the Slack block payload for an event
func RichMessage(e models.Event, opts Options) SlackMessage {
	prefix := testPrefix(opts.Test)
	magnitude := fmt.Sprintf("%.1f", e.Magnitude)

	msg := SlackMessage{
		Text: fmt.Sprintf("%s<!everyone> *%s* - %s", prefix, magnitude, e.Place),
	}

	msg.Blocks = append(msg.Blocks,
		SlackBlock{Type: "header", Text: plainText(prefix + magnitude)},
		SlackBlock{Type: "section", Text: mrkdwn(fmt.Sprintf("<%s|%s> at <!date^%d^{time}|%s>",
			MapsURL(e), e.Place, e.Time.Unix(), e.Time.UTC().Format("15:04")))},
	)

	if special := specialConditions(e); len(special) > 0 {
		msg.Blocks = append(msg.Blocks, SlackBlock{Type: "section", Text: mrkdwn(strings.Join(special, "\n"))})
	}

	if len(opts.Nearby) > 0 {
		lines := []string{"*Nearby Locations:*"}
		for _, n := range opts.Nearby {
			lines = append(lines, poiLine(n))
		}
		msg.Blocks = append(msg.Blocks, SlackBlock{Type: "section", Text: mrkdwn(strings.Join(lines, "\n"))})
	}

	var actions []SlackElement
	if e.URL != "" {
		actions = append(actions, button("View on USGS", e.URL))
	}
	if e.HasShakemap {
		actions = append(actions, button("Shakemap", ShakemapURL(e)))
	}
	actions = append(actions, button("earthquake.city", SiteURL))
	msg.Blocks = append(msg.Blocks,
		SlackBlock{Type: "actions", Elements: actions},
		SlackBlock{Type: "divider"},
	)

	return msg
}

func specialConditions(e models.Event) []string {
	var lines []string
	if e.Tsunami {
		lines = append(lines, "🌊 *TSUNAMI WARNING ISSUED*")
	}
	if e.Alert != models.AlertNone {
		lines = append(lines, fmt.Sprintf("%s PAGER Alert Level: %s", AlertIcon(e.Alert), strings.ToUpper(string(e.Alert))))
	}
	if felt := e.FeltCount(); felt > 0 {
		lines = append(lines, fmt.Sprintf("👥 Felt by %s people", humanize.Comma(int64(felt))))
	}
	return lines
}

func poiLine(n models.NearbyPOI) string {
	return fmt.Sprintf("• %s: %.1f km away", n.POI.Name, n.DistanceKm)
}

// BatchSummary renders a digest of several events, newest first as given
func BatchSummary(events []models.Event) SlackMessage {
	if len(events) == 0 {
		return SlackMessage{Text: "No earthquakes to report.", Blocks: []SlackBlock{}}
	}

	maxMag := events[0].Magnitude
	for _, e := range events[1:] {
		if e.Magnitude > maxMag {
			maxMag = e.Magnitude
		}
	}

	var lines []string
	for i, e := range events {
		if i == batchLimit {
			lines = append(lines, fmt.Sprintf("_...and %d more_", len(events)-batchLimit))
			break
		}
		lines = append(lines, fmt.Sprintf("%s M%.1f - %s (%s)",
			MagnitudeEmoji(e.Magnitude), e.Magnitude, e.Place, e.Time.In(PST).Format("15:04 PST")))
	}

	return SlackMessage{
		Text: fmt.Sprintf("🌍 %d earthquake(s) detected, max magnitude %.1f", len(events), maxMag),
		Blocks: []SlackBlock{
			{Type: "header", Text: plainText(fmt.Sprintf("Earthquake Summary: %d Events", len(events)))},
			{Type: "section", Text: mrkdwn(strings.Join(lines, "\n"))},
		},
	}
}
