package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is assumed when no charset is named.
const DefaultEncoding = "utf-8"

// ErrUnsupportedEncoding is returned for charset names golang.org/x/text
// cannot decode.
var ErrUnsupportedEncoding = errors.New("unsupported text encoding")

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// LookupEncoding resolves an IANA charset name (e.g., "utf-8", "GBK",
// "Shift_JIS", "ISO-8859-1"). An empty name means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	if enc == nil {
		// Known to IANA but without a decoder in golang.org/x/text.
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}

	if enc == unicode.UTF8 {
		// Tolerate the BOM some editors write.
		enc = unicode.UTF8BOM
	}

	return enc, nil
}

// DecodeText reads all of r and converts it from the named charset to UTF-8.
// Bytes that are invalid in the source charset become U+FFFD.
func DecodeText(r io.Reader, charset string) (string, error) {
	enc, err := LookupEncoding(charset)
	if err != nil {
		return "", err
	}

	b, err := io.ReadAll(transform.NewReader(r, enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("could not decode text as %s: %w", charset, err)
	}

	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

// Batches splits text into paragraphs on blank lines and groups consecutive
// paragraphs so that each batch holds at most maxChars characters. A single
// paragraph longer than maxChars forms a batch of its own.
func Batches(text string, maxChars int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		batches []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if current.Len() > 0 {
			batches = append(batches, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		n := len([]rune(para))
		if size > 0 && size+n > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
			size += 2
		}
		current.WriteString(para)
		size += n
	}
	flush()

	return batches
}

// TranslateTextFile decodes a text file from the named charset and
// translates it batch by batch. The translated batches are joined with blank
// lines. req.Text is ignored.
func (t *Translator) TranslateTextFile(ctx context.Context, r io.Reader, charset string, req Request) (string, error) {
	text, err := DecodeText(r, charset)
	if err != nil {
		return "", err
	}

	batches := Batches(text, t.batchChars)
	if len(batches) == 0 {
		return "", ErrEmptyText
	}

	t.logger.Info("translating text file",
		"platform", t.settings.Platform,
		"encoding", charset,
		"characters", len([]rune(text)),
		"batches", len(batches),
	)

	translated := make([]string, 0, len(batches))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		part := req
		part.Text = batch
		out, err := t.Translate(ctx, part)
		if err != nil {
			return "", fmt.Errorf("translating batch %d of %d: %w", i+1, len(batches), err)
		}
		translated = append(translated, out)
	}

	return strings.Join(translated, "\n\n"), nil
}
