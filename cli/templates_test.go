package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_LongDesc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give string
		want string
	}{
		{
			name: "empty string produces empty string",
			give: "",
			want: "",
		},
		{
			name: "single line string produces same string",
			give: "hello world",
			want: "hello world",
		},
		{
			name: "multi line string produces same string",
			give: "hello\nworld",
			want: "hello\nworld",
		},
		{
			name: "multi line string with leading/trailing whitespace trims whitespace",
			give: "  hello\nworld  ",
			want: "hello\nworld",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := LongDesc(tt.give)

			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Examples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give string
		want string
	}{
		{
			name: "empty string produces empty string",
			give: "",
			want: "",
		},
		{
			name: "single line string is indented",
			give: "artemis experiments list",
			want: Indentation + "artemis experiments list",
		},
		{
			name: "multi line string is trimmed and indented per line",
			give: "\n\t# List experiments\n\tartemis experiments list\n",
			want: Indentation + "# List experiments\n" + Indentation + "artemis experiments list",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Examples(tt.give)

			assert.Equal(t, tt.want, got)
		})
	}
}
