// Command liasis-scrapeprobe issues one HTTP tracker scrape request for a
// single info-hash and prints the complete/incomplete/downloaded counts
// the tracker reports. A standalone diagnostic: gvsurenderreddy-rakoshare
// polls a tracker for full announce/peer-list responses from inside
// ControlSession.Run(), this tool instead speaks the much smaller
// scrape convention (a bencoded "files" dict keyed by raw info-hash,
// the shape the8thbit/mika's scrape handler produces on the server side)
// without needing a running daemon at all.
package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/codegangsta/cli"
	"github.com/pkg/errors"

	"github.com/sh01/liasis/internal/bencode"
)

func main() {
	app := cli.NewApp()
	app.Name = "liasis-scrapeprobe"
	app.Usage = "issue one tracker scrape request and print seeders/leechers"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "tracker", Usage: "tracker announce URL; the probe rewrites /announce to /scrape"},
		cli.StringFlag{Name: "info-hash", Usage: "40-character hex info-hash to scrape"},
		cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "HTTP request timeout"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	trackerURL := c.String("tracker")
	infoHashHex := c.String("info-hash")
	if trackerURL == "" || infoHashHex == "" {
		return cli.NewExitError("both --tracker and --info-hash are required", 1)
	}

	infoHash, err := decodeInfoHash(infoHashHex)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	scrapeURL, err := scrapeURLFromAnnounce(trackerURL)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	client := &http.Client{Timeout: c.Duration("timeout")}
	stats, err := scrapeOne(client, scrapeURL, infoHash)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Printf("complete=%d incomplete=%d downloaded=%d\n", stats.complete, stats.incomplete, stats.downloaded)
	return nil
}

func decodeInfoHash(hexStr string) ([]byte, error) {
	if len(hexStr) != 40 {
		return nil, errors.New("scrapeprobe: --info-hash must be 40 hex characters")
	}
	out := make([]byte, 20)
	for i := 0; i < 20; i++ {
		hi, err := hexNibble(hexStr[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(hexStr[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, errors.Errorf("scrapeprobe: invalid hex digit %q", c)
	}
}

// scrapeURLFromAnnounce applies BEP 48's textual convention: replace the
// last path segment "announce" with "scrape". A tracker whose announce
// path doesn't contain that segment does not support scrape.
func scrapeURLFromAnnounce(announce string) (string, error) {
	idx := strings.LastIndex(announce, "/announce")
	if idx < 0 {
		return "", errors.New("scrapeprobe: tracker URL has no /announce segment to rewrite")
	}
	return announce[:idx] + "/scrape" + announce[idx+len("/announce"):], nil
}

type scrapeStats struct {
	complete   int64
	incomplete int64
	downloaded int64
}

func scrapeOne(client *http.Client, scrapeURL string, infoHash []byte) (scrapeStats, error) {
	u, err := url.Parse(scrapeURL)
	if err != nil {
		return scrapeStats{}, errors.Wrap(err, "scrapeprobe: parsing scrape URL")
	}
	q := u.Query()
	q.Set("info_hash", string(infoHash))
	u.RawQuery = q.Encode()

	resp, err := client.Get(u.String())
	if err != nil {
		return scrapeStats{}, errors.Wrap(err, "scrapeprobe: scrape request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scrapeStats{}, errors.Wrap(err, "scrapeprobe: reading scrape response")
	}
	if resp.StatusCode != http.StatusOK {
		return scrapeStats{}, errors.Errorf("scrapeprobe: tracker returned %s: %s", resp.Status, body)
	}

	v, err := bencode.Decode(body)
	if err != nil {
		return scrapeStats{}, errors.Wrap(err, "scrapeprobe: decoding scrape response")
	}
	if v.Kind != bencode.KindDict {
		return scrapeStats{}, errors.New("scrapeprobe: scrape response is not a dictionary")
	}
	if fail, ok := v.Dict["failure reason"]; ok && fail.Kind == bencode.KindString {
		return scrapeStats{}, errors.Errorf("scrapeprobe: tracker failure: %s", fail.Str)
	}
	files, ok := v.Dict["files"]
	if !ok || files.Kind != bencode.KindDict {
		return scrapeStats{}, errors.New("scrapeprobe: scrape response has no files dictionary")
	}
	entry, ok := files.Dict[string(infoHash)]
	if !ok || entry.Kind != bencode.KindDict {
		return scrapeStats{}, errors.New("scrapeprobe: tracker has no entry for this info-hash")
	}
	return scrapeStats{
		complete:   intField(entry, "complete"),
		incomplete: intField(entry, "incomplete"),
		downloaded: intField(entry, "downloaded"),
	}, nil
}

func intField(v bencode.Value, key string) int64 {
	f, ok := v.Dict[key]
	if !ok || f.Kind != bencode.KindInt {
		return 0
	}
	return f.Int
}
