package ua

import "testing"

func TestParse(t *testing.T) {
	bot := Parse("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	if !bot.IsBot {
		t.Fatalf("Googlebot not flagged: %+v", bot)
	}

	chrome := Parse("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	if chrome.IsBot || chrome.Device != "Desktop" || chrome.Browser != "Chrome" {
		t.Fatalf("Chrome parsed as %+v", chrome)
	}

	if empty := Parse(""); empty.IsBot || empty.Device != "Other" {
		t.Fatalf("empty UA parsed as %+v", empty)
	}
}
