package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustVerifier(t *testing.T, required bool) *Verifier {
	t.Helper()
	v, err := New("shhh", required)
	require.NoError(t, err)
	return v
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("  ", false)
	require.Error(t, err)
}

func TestVerify_ValidSignature(t *testing.T) {
	v := mustVerifier(t, false)
	body := []byte(`{"events":[]}`)

	require.NoError(t, v.Verify(body, v.Sign(body)))
	require.NoError(t, v.Verify(body, strings.TrimPrefix(v.Sign(body), "sha256=")))
}

func TestVerify_PrefixCaseInsensitive(t *testing.T) {
	v := mustVerifier(t, false)
	body := []byte(`{"events":[]}`)
	digest := strings.TrimPrefix(v.Sign(body), "sha256=")

	require.NoError(t, v.Verify(body, "SHA256="+digest))
	require.NoError(t, v.Verify(body, "Sha256="+strings.ToUpper(digest)))
}

func TestVerify_SingleBitMutationFails(t *testing.T) {
	v := mustVerifier(t, false)
	body := []byte(`{"events":[{"type":"conversation:message"}]}`)
	sig := v.Sign(body)

	for i := range body {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 1 << bit
			require.ErrorIs(t, v.Verify(mutated, sig), ErrAuthentication, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := mustVerifier(t, false)
	other, err := New("other", false)
	require.NoError(t, err)
	body := []byte("hello")

	require.ErrorIs(t, v.Verify(body, other.Sign(body)), ErrAuthentication)
}

func TestVerify_MalformedHeader(t *testing.T) {
	v := mustVerifier(t, false)
	body := []byte("hello")

	require.ErrorIs(t, v.Verify(body, "sha256=not-hex"), ErrAuthentication)
	require.ErrorIs(t, v.Verify(body, "sha256=abcd"), ErrAuthentication)
	require.ErrorIs(t, v.Verify(body, v.Sign(body)+"00"), ErrAuthentication)
}

func TestVerify_MissingHeader(t *testing.T) {
	require.NoError(t, mustVerifier(t, false).Verify([]byte("hello"), ""))
	require.ErrorIs(t, mustVerifier(t, true).Verify([]byte("hello"), " "), ErrMissingSignature)
}
