package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	out    *ssm.GetParametersOutput
	err    error
	lastIn *ssm.GetParametersInput
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.lastIn = in
	return f.out, f.err
}

func strPtr(s string) *string { return &s }

func param(name, value string) types.Parameter {
	return types.Parameter{Name: strPtr(name), Value: strPtr(value), Type: types.ParameterTypeSecureString}
}

func TestSlackTokens_HappyPath(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParametersOutput{Parameters: []types.Parameter{
		param("/standup/bot-token", "xoxb-1"),
		param("/standup/app-token", " xapp-1\n"),
	}}}
	client, err := New(api)
	require.NoError(t, err)

	tokens, err := client.SlackTokens(context.Background(), "/standup/")
	require.NoError(t, err)
	require.Equal(t, Tokens{Bot: "xoxb-1", App: "xapp-1"}, tokens)
	require.Equal(t, []string{"/standup/bot-token", "/standup/app-token"}, api.lastIn.Names)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestSlackTokens_EmptyPrefix(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.SlackTokens(context.Background(), " / ")
	require.ErrorContains(t, err, "prefix")
}

func TestGetParameters_InvalidParameters(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParametersOutput{InvalidParameters: []string{"/standup/app-token"}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "/standup/app-token")
	require.ErrorContains(t, err, "unknown parameters /standup/app-token")
}

func TestGetParameters_MissingValue(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParametersOutput{Parameters: []types.Parameter{
		{Name: strPtr("a"), Value: nil},
	}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameters_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "a")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameters_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameters(context.Background(), "a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameters_BadNames(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background())
	require.Error(t, err)
	_, err = client.GetParameters(context.Background(), "  ")
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestGetParameters_DoesNotModifyCallerNames(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParametersOutput{Parameters: []types.Parameter{
		param("/standup/bot-token", "xoxb-1"),
	}}}
	client, err := New(api)
	require.NoError(t, err)

	names := []string{"  /standup/bot-token "}
	values, err := client.GetParameters(context.Background(), names...)
	require.NoError(t, err)
	require.Equal(t, "xoxb-1", values["/standup/bot-token"])
	require.Equal(t, []string{"/standup/bot-token"}, api.lastIn.Names)
	require.Equal(t, []string{"  /standup/bot-token "}, names)
}
