package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adnews/internal/fetch"
	"adnews/internal/model"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>РБК</title>
	<item>
		<title>ЦБ поднял ставку</title>
		<link>http://x/1</link>
		<description><![CDATA[<p>Первое.</p>]]></description>
		<pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate>
	</item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Интерфакс</title>
	<entry>
		<title>Курс доллара упал</title>
		<link href="http://x/2"/>
		<content type="html">Второе.</content>
		<updated>2024-01-01T10:00:00Z</updated>
	</entry>
</feed>`

func serve(t *testing.T, body string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

func TestFetchRSS(t *testing.T) {
	src := NewRSSSourceFromModel(model.NewsSource{ID: 7, Name: "РБК", FeedURL: serve(t, rssFeed)}, fetch.New(time.Second))

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if src.ID() != 7 || src.Name() != "РБК" {
		t.Errorf("unexpected source identity %d %s", src.ID(), src.Name())
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Title != "ЦБ поднял ставку" || item.Link != "http://x/1" || item.FeedTitle != "РБК" {
		t.Errorf("unexpected item %+v", item)
	}
	if item.Published != "Mon, 01 Jan 2024 10:00:00 +0000" {
		t.Errorf("raw publication date should be kept, got %q", item.Published)
	}
	if item.Description != "<p>Первое.</p>" {
		t.Errorf("raw description should be kept, got %q", item.Description)
	}
}

func TestFetchAtomUsesContent(t *testing.T) {
	src := NewRSSSourceFromModel(model.NewsSource{FeedURL: serve(t, atomFeed)}, fetch.New(time.Second))

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(items) != 1 || items[0].Description != "Второе." || items[0].Link != "http://x/2" {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestFetchInvalidFeed(t *testing.T) {
	src := NewRSSSourceFromModel(model.NewsSource{FeedURL: serve(t, "<html>not a feed</html>")}, fetch.New(time.Second))

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
