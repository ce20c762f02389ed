package parse

import (
	"bytes"
	"fmt"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// minConfidence is the chardet score (0-100) below which its guess is
// ignored and the windows-1252 default stands. A single paragraph of
// single-byte Cyrillic scores in the 40s, where chardet confuses the KOI8-R,
// windows-1251 and Latin-1 families often enough that keeping the HTML
// default is the smaller error; a page of text scores well above 50.
const minConfidence = 50

// Decode converts content to UTF-8. A byte-order mark or <meta> declaration
// wins; when the sniffer only has its windows-1252 default to offer, a
// statistical guess from chardet is preferred if it is confident enough.
func Decode(content []byte) ([]byte, string, error) {
	enc, name, certain := charset.DetermineEncoding(content, "text/html")
	if !certain && name == "windows-1252" && !declaresCharset(content) {
		if e, n := detect(content); e != nil {
			enc, name = e, n
		}
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return nil, name, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, name, nil
}

func detect(content []byte) (encoding.Encoding, string) {
	res, err := chardet.NewTextDetector().DetectBest(content)
	if err != nil {
		return nil, ""
	}
	return accept(res)
}

// accept maps a confident chardet result to an encoding.
func accept(res *chardet.Result) (encoding.Encoding, string) {
	if res == nil || res.Confidence < minConfidence {
		return nil, ""
	}
	return charset.Lookup(res.Charset)
}

// declaresCharset reports whether the prescan window mentions a charset, in
// which case the sniffer's answer came from the document itself.
func declaresCharset(content []byte) bool {
	if len(content) > 1024 {
		content = content[:1024]
	}
	return bytes.Contains(bytes.ToLower(content), []byte("charset"))
}
