package codec_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/forbearing/sqlmap/codec"
	"github.com/stretchr/testify/require"
)

type Status string

func (s Status) MarshalText() ([]byte, error)  { return []byte(string(s)), nil }
func (s *Status) UnmarshalText(b []byte) error { *s = Status(b); return nil }

func TestOpaqueNumericCoercion(t *testing.T) {
	reg := codec.NewRegistry()
	c := reg.Lookup(reflect.TypeFor[int64](), "")
	v, err := c.Decode("42", reflect.TypeFor[int64]())
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

func TestTimeCodecFromString(t *testing.T) {
	reg := codec.NewRegistry()
	c := reg.Lookup(reflect.TypeFor[time.Time](), "")
	v, err := c.Decode("2024-01-02T15:04:05Z", reflect.TypeFor[time.Time]())
	require.NoError(t, err)
	require.Equal(t, 2024, v.(time.Time).Year())
}

func TestEnumCodecRoundTrip(t *testing.T) {
	reg := codec.NewRegistry()
	c := reg.Lookup(reflect.TypeFor[Status](), "")
	enc, err := c.Encode(Status("active"))
	require.NoError(t, err)
	require.Equal(t, "active", enc)

	dec, err := c.Decode("active", reflect.TypeFor[Status]())
	require.NoError(t, err)
	require.Equal(t, Status("active"), dec)
}

func TestExactLookupOverridesOpaque(t *testing.T) {
	reg := codec.NewRegistry()
	reg.Register(reflect.TypeFor[int64](), "BIGINT", codec.Func{
		EncodeFn: func(v any) (any, error) { return v, nil },
		DecodeFn: func(c any, t reflect.Type) (any, error) { return int64(-1), nil },
	})
	c := reg.Lookup(reflect.TypeFor[int64](), "BIGINT")
	v, err := c.Decode("anything", reflect.TypeFor[int64]())
	require.NoError(t, err)
	require.Equal(t, int64(-1), v)
}
