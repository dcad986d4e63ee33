package whois_test

import (
	"asnlookup/pkg/whois"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const header = "AS      | IP               | BGP Prefix          | CC | Registry | Allocated  | AS Name"

func TestShapeResponse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{
			name: "empty response",
			in:   "",
			out:  "",
		},
		{
			name: "header only",
			in:   header + "\n",
			out:  "",
		},
		{
			name: "header only without terminator",
			in:   header,
			out:  "",
		},
		{
			name: "single data line with crlf",
			in:   header + "\r\n15169   | 8.8.8.8          | 8.8.8.0/24          | US | arin     | 2023-12-28 | GOOGLE, US\r\n",
			out:  "15169   | 8.8.8.8          | 8.8.8.0/24          | US | arin     | 2023-12-28 | GOOGLE, US",
		},
		{
			name: "multiple data lines",
			in:   header + "\nline one\nline two\n",
			out:  "line one\nline two",
		},
		{
			name: "blank lines in the middle are kept",
			in:   header + "\nline one\n\nline three",
			out:  "line one\n\nline three",
		},
		{
			name: "first line dropped even when it is not a header",
			in:   "Error: no ASN found\nsomething",
			out:  "something",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.out, whois.ShapeResponse(tc.in))
		})
	}
}

func TestShapeResponse_DropsExactlyOneLine(t *testing.T) {
	for n := 1; n <= 10; n++ {
		lines := make([]string, n)
		lines[0] = header
		for i := 1; i < n; i++ {
			lines[i] = "data"
		}

		for _, terminator := range []string{"", "\n"} {
			raw := strings.Join(lines, "\n") + terminator
			shaped := whois.ShapeResponse(raw)

			require.Len(t, whois.SplitLines(shaped), n-1, "n=%d terminator=%q", n, terminator)
		}
	}
}

func TestSplitLines(t *testing.T) {
	require.Nil(t, whois.SplitLines(""))
	require.Equal(t, []string{""}, whois.SplitLines("\n"))
	require.Equal(t, []string{"a", "b"}, whois.SplitLines("a\r\nb\r\n"))
	require.Equal(t, []string{"a", "", "b"}, whois.SplitLines("a\n\nb"))
}
