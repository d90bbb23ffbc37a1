package export

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)

	data := []byte("id,name\n1,alpha\n")
	sealed, err := enc.Encrypt(data)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "alpha")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, data, plain)
}

func TestEncryptor_FreshSaltPerCall(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptor_WrongPassphrase(t *testing.T) {
	enc, _ := NewEncryptor("right")
	other, _ := NewEncryptor("wrong")

	sealed, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestEncryptor_InvalidInput(t *testing.T) {
	enc, _ := NewEncryptor("key")

	_, err := enc.Decrypt([]byte("plain csv"))
	assert.Error(t, err)

	_, err = enc.Decrypt([]byte(encryptionMagic + "short"))
	assert.Error(t, err)

	_, err = NewEncryptor("")
	assert.Error(t, err)
}

func TestCompressor_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("registros,demandas\n"), 500)

	for _, algorithm := range []CompressionType{CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			c, err := NewCompressor(algorithm)
			require.NoError(t, err)
			assert.Equal(t, algorithm, c.Algorithm())

			var buf bytes.Buffer
			w, err := c.NewWriter(&buf)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if algorithm != CompressionTypeNone {
				assert.Less(t, buf.Len(), len(data))
			}

			r, err := c.NewReader(&buf)
			require.NoError(t, err)
			defer r.Close()
			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestNewCompressor_Unsupported(t *testing.T) {
	_, err := NewCompressor("brotli")
	assert.Error(t, err)
}
