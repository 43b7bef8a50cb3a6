// Command liasis-piececheck verifies a downloaded file's contents against
// a .torrent metainfo's per-piece SHA-1 hashes. It is a standalone
// diagnostic, independent of a running daemon: the same piece-hash
// derivation gvsurenderreddy-rakoshare's metainfo.go performs when it
// builds InfoHash from the info dict, applied per-piece instead of once
// over the whole dict.
package main

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"

	"github.com/codegangsta/cli"
	"github.com/pkg/errors"

	"github.com/sh01/liasis/internal/bencode"
)

func main() {
	app := cli.NewApp()
	app.Name = "liasis-piececheck"
	app.Usage = "verify a file's pieces against a .torrent's piece hashes"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "torrent", Usage: ".torrent metainfo file to read piece hashes from"},
		cli.StringFlag{Name: "data", Usage: "single-file torrent's downloaded data file"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	torrentPath := c.String("torrent")
	dataPath := c.String("data")
	if torrentPath == "" || dataPath == "" {
		return cli.NewExitError("both --torrent and --data are required", 1)
	}

	info, err := readInfoDict(torrentPath)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	pieceLen, pieces, err := pieceHashes(info)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("piececheck: %s", err), 1)
	}
	defer f.Close()

	bad := 0
	buf := make([]byte, pieceLen)
	for idx, want := range pieces {
		n, rerr := io.ReadFull(f, buf)
		if n == 0 && rerr == io.EOF {
			fmt.Printf("piece %d: missing (file ended early)\n", idx)
			bad++
			continue
		}
		sum := sha1.Sum(buf[:n])
		if !bytesEqual(sum[:], want) {
			fmt.Printf("piece %d: MISMATCH\n", idx)
			bad++
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return cli.NewExitError(fmt.Sprintf("piececheck: read error: %s", rerr), 1)
		}
	}

	fmt.Printf("%d piece(s) checked, %d bad\n", len(pieces), bad)
	if bad > 0 {
		return cli.NewExitError("", 1)
	}
	return nil
}

func readInfoDict(path string) (bencode.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return bencode.Value{}, errors.Wrap(err, "piececheck: reading torrent file")
	}
	v, err := bencode.Decode(raw)
	if err != nil {
		return bencode.Value{}, errors.Wrap(err, "piececheck: decoding torrent file")
	}
	if v.Kind != bencode.KindDict {
		return bencode.Value{}, errors.New("piececheck: torrent file is not a dictionary")
	}
	info, ok := v.Dict["info"]
	if !ok || info.Kind != bencode.KindDict {
		return bencode.Value{}, errors.New("piececheck: torrent file has no info dictionary")
	}
	return info, nil
}

// pieceHashes splits the info dict's "pieces" byte string into its 20-byte
// SHA-1 hashes and returns the declared piece length alongside them.
func pieceHashes(info bencode.Value) (int64, [][]byte, error) {
	pieceLen, ok := info.Dict["piece length"]
	if !ok || pieceLen.Kind != bencode.KindInt || pieceLen.Int <= 0 {
		return 0, nil, errors.New("piececheck: info dict missing a valid piece length")
	}
	raw, ok := info.Dict["pieces"]
	if !ok || raw.Kind != bencode.KindString {
		return 0, nil, errors.New("piececheck: info dict missing pieces")
	}
	if len(raw.Str)%20 != 0 {
		return 0, nil, errors.New("piececheck: pieces string is not a multiple of 20 bytes")
	}
	out := make([][]byte, 0, len(raw.Str)/20)
	for i := 0; i < len(raw.Str); i += 20 {
		out = append(out, raw.Str[i:i+20])
	}
	return pieceLen.Int, out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
