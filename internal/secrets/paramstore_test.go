package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out  *ssm.GetParameterOutput
	err  error
	last *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.last = in
	return f.out, f.err
}

func valueOutput(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(v)}}
}

func TestNewParamStore_NilAPI(t *testing.T) {
	_, err := NewParamStore(nil)
	require.Error(t, err)
}

func TestParamStore_GetPlainValue(t *testing.T) {
	api := &fakeSSM{out: valueOutput("  xi-plain ")}
	ps, err := NewParamStore(api)
	require.NoError(t, err)

	v, err := ps.Get(context.Background(), " /sunnyside/elevenlabs-api-key ")
	require.NoError(t, err)
	require.Equal(t, "xi-plain", v)
	require.Equal(t, "/sunnyside/elevenlabs-api-key", aws.ToString(api.last.Name))
	require.True(t, aws.ToBool(api.last.WithDecryption))
}

func TestParamStore_GetJSONToken(t *testing.T) {
	ps, err := NewParamStore(&fakeSSM{out: valueOutput(`{"token":"sk-from-json"}`)})
	require.NoError(t, err)

	v, err := ps.Get(context.Background(), "/sunnyside/openai-api-key")
	require.NoError(t, err)
	require.Equal(t, "sk-from-json", v)
}

func TestParamStore_NotFound(t *testing.T) {
	ps, err := NewParamStore(&fakeSSM{err: &types.ParameterNotFound{}})
	require.NoError(t, err)

	_, err = ps.Get(context.Background(), "/sunnyside/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParamStore_Errors(t *testing.T) {
	ps, err := NewParamStore(&fakeSSM{err: errors.New("ssm unavailable")})
	require.NoError(t, err)
	_, err = ps.Get(context.Background(), "/sunnyside/x")
	require.ErrorContains(t, err, "ssm unavailable")

	_, err = ps.Get(context.Background(), " ")
	require.ErrorContains(t, err, "required")

	ps, err = NewParamStore(&fakeSSM{out: &ssm.GetParameterOutput{}})
	require.NoError(t, err)
	_, err = ps.Get(context.Background(), "/sunnyside/x")
	require.ErrorContains(t, err, "missing value")
}
