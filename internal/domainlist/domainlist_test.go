package domainlist_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndejong/domain-email-records/internal/domainlist"
	"github.com/ndejong/domain-email-records/internal/mocks"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		column   int
		expected []string
	}{
		{
			name:     "plain list",
			input:    "example.com\n  example.org  \n\nexample.net\n",
			column:   2,
			expected: []string{"example.com", "example.org", "example.net"},
		},
		{
			name:     "csv second column",
			input:    "1,example.com\n2, example.org ,x\n3\n",
			column:   2,
			expected: []string{"example.com", "example.org", "3"},
		},
		{
			name:     "csv short rows skipped",
			input:    "a,b,example.com\nc,d\ne,f,example.org\n",
			column:   3,
			expected: []string{"example.com", "example.org"},
		},
		{
			name:     "csv first column",
			input:    "example.com,rank\r\nexample.org,rank\r\n",
			column:   1,
			expected: []string{"example.com", "example.org"},
		},
		{
			name:     "empty column value skipped",
			input:    "1,,x\n2,example.com\n",
			column:   2,
			expected: []string{"example.com"},
		},
		{
			name:   "empty input",
			input:  "",
			column: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			domains, err := domainlist.Parse(strings.NewReader(tc.input), tc.column)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, domains)
		})
	}
}

func TestParseInvalidColumn(t *testing.T) {
	_, err := domainlist.Parse(strings.NewReader("example.com"), 0)
	assert.ErrorIs(t, err, domainlist.ErrInvalidColumn)
}

func TestLoad(t *testing.T) {
	fsys := new(mocks.MockOsFS)
	fsys.On("ReadFile", "domains.csv").Return([]byte("1,example.com\n2,example.org\n"), nil)
	fsys.On("ReadFile", "missing.txt").Return(nil, os.ErrNotExist)

	l := domainlist.New(fsys, 2)

	domains, err := l.Load("domains.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "example.org"}, domains)

	_, err = l.Load("missing.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
	fsys.AssertExpectations(t)
}

func TestSplit(t *testing.T) {
	assert.Equal(t,
		[]string{"example.com", "example.org", "example.net", "example.edu"},
		domainlist.Split([]string{"example.com,example.org", " example.net\texample.edu "}))
	assert.Nil(t, domainlist.Split(nil))
}
