package formatter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/earthquake-city/quake-alerts/internal/models"
)

const (
	// MaxShortTextLen is the hard cap on short-text messages, in characters
	MaxShortTextLen = 280

	minHeadlineLen   = 20
	longTextPOILimit = 3
	feltLongMin      = 10
	feltShortMin     = 100
)

// ShortText renders a post of at most MaxShortTextLen characters.
//
// The headline is always kept. Special conditions and depth follow on their
// own lines. The site link and then the event URL are appended while they
// fit. If the text is still too long the headline is shortened, and as a
// last resort the whole post is cut.
func ShortText(e models.Event, opts Options) string {
	lines := []string{fmt.Sprintf("%s%sM%.1f earthquake - %s",
		testPrefix(opts.Test), tierFor(e.Magnitude).headline, e.Magnitude, e.Place)}

	var special []string
	if e.Tsunami {
		special = append(special, "TSUNAMI WARNING")
	}
	if e.Alert.IsHigh() {
		special = append(special, "PAGER: "+strings.ToUpper(string(e.Alert)))
	}
	if felt := e.FeltCount(); felt >= feltShortMin {
		special = append(special, fmt.Sprintf("Felt by %s+ people", humanize.Comma(int64(felt))))
	}
	if len(special) > 0 {
		lines = append(lines, strings.Join(special, " | "))
	}

	info := []string{fmt.Sprintf("Depth: %.0fkm", e.DepthKm)}
	if len(opts.Nearby) > 0 {
		nearest := opts.Nearby[0]
		info = append(info, fmt.Sprintf("%.0fkm from %s", nearest.DistanceKm, nearest.POI.Name))
	}
	lines = append(lines, strings.Join(info, " | "))

	body := strings.Join(lines, "\n")
	post := body
	if withSite := body + "\n" + SiteURL; fits(withSite) {
		post = withSite
		if e.URL != "" && fits(post+"\n"+e.URL) {
			post += "\n" + e.URL
		}
	} else if e.URL != "" && fits(body+"\n"+e.URL) {
		post = body + "\n" + e.URL
	}

	if fits(post) {
		return post
	}

	rest := strings.Join(lines[1:], "\n")
	maxHeadline := MaxShortTextLen - utf8.RuneCountInString(rest) - 4
	if maxHeadline > minHeadlineLen {
		lines[0] = truncate(lines[0], maxHeadline) + "..."
		return strings.Join(lines, "\n")
	}

	return truncate(post, MaxShortTextLen-3) + "..."
}

func fits(s string) bool {
	return utf8.RuneCountInString(s) <= MaxShortTextLen
}

// truncate keeps the first n characters of s
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// LongText renders a multi-line message for WhatsApp and email
func LongText(e models.Event, opts Options) string {
	lines := []string{
		fmt.Sprintf("%s%s *%s Earthquake*", testPrefix(opts.Test), MagnitudeEmoji(e.Magnitude), SeverityLabel(e.Magnitude)),
		"",
		fmt.Sprintf("*Magnitude:* %.1f", e.Magnitude),
		fmt.Sprintf("*Location:* %s", e.Place),
		fmt.Sprintf("*Depth:* %.1f km", e.DepthKm),
		fmt.Sprintf("*Time:* %s", e.Time.In(PST).Format("Jan 02, 2006 at 03:04 PM PST")),
	}

	if e.Tsunami {
		lines = append(lines, "", "🌊 *TSUNAMI WARNING ISSUED*")
	}
	if e.Alert != models.AlertNone {
		lines = append(lines, fmt.Sprintf("%s PAGER Alert: %s", AlertIcon(e.Alert), strings.ToUpper(string(e.Alert))))
	}
	if felt := e.FeltCount(); felt >= feltLongMin {
		lines = append(lines, fmt.Sprintf("👥 Felt by %s people", humanize.Comma(int64(felt))))
	}

	if len(opts.Nearby) > 0 {
		lines = append(lines, "", "*Nearby Locations:*")
		for i, n := range opts.Nearby {
			if i == longTextPOILimit {
				break
			}
			lines = append(lines, poiLine(n))
		}
	}

	lines = append(lines, "", "🔗 "+SiteURL)
	if e.URL != "" {
		lines = append(lines, "🔗 "+e.URL)
	}

	return strings.Join(lines, "\n")
}
