package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junction-dev/junction-go/internal/testutil"
	"github.com/junction-dev/junction-go/pkg/junction"
)

const placeJSON = `{"id":"place_01","name":"Berlin Hbf","placeTypes":["railway-station"],"coordinates":{"latitude":52.525,"longitude":13.369},"countryCode":"DE"}`

const bookingJSON = `{
  "id": "booking_1",
  "status": "pending",
  "price": {"currency": "GBP", "amount": "120.00"},
  "passengers": [{"dateOfBirth": "1990-12-10", "firstName": "Ada", "lastName": "Lovelace"}]
}`

type cliRun struct {
	home  string
	stdin io.Reader
}

func (r cliRun) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := r.home
	if home == "" {
		home = t.TempDir()
	}
	t.Setenv("HOME", home)
	t.Setenv(junction.APIKeyEnv, "")

	root := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-01"})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if r.stdin != nil {
		root.SetIn(r.stdin)
	}
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return cliRun{}.execute(t, args...)
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand(BuildInfo{})
	t.Cleanup(viper.Reset)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "auth", "places", "flights", "trains", "bookings", "cancellations"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "api-key", "base-url", "output", "verbose", "timeout", "redis-url", "rate-limit"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %s", flag)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version", "-o", "json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, junction.Version, info["library"])
	assert.Equal(t, "abc123", info["commit"])

	out, err = executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := executeCommand(t, "version", "-o", "xml")
	assert.ErrorIs(t, err, errUnknownFormat)
}

func TestMissingAPIKey(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()

	_, err := executeCommand(t, "places", "get", "place_01", "--base-url", mock.URL())
	assert.ErrorIs(t, err, junction.ErrConfiguration)
	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestPlacesGet(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/place_01", testutil.NewJSONResponse(placeJSON))

	out, err := executeCommand(t, "places", "get", "place_01", "--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err)
	assert.Contains(t, out, "Berlin Hbf")
	assert.Contains(t, out, "railway-station")

	got, _ := mock.LastRequest()
	assert.Equal(t, "sk_test_cli", got.Header.Get("x-api-key"))
}

func TestPlacesSearchStopsAtMax(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	items := "[" + placeJSON + "," + strings.Replace(placeJSON, "place_01", "place_02", 1) + "]"
	mock.SetResponse("GET", "/places", testutil.NewJSONResponse(testutil.OffersPage(items, "/places?page[after]=x")))

	out, err := executeCommand(t, "places", "search", "--name", "Berlin", "--max", "1", "-o", "json",
		"--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err)

	var places []junction.Place
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 1)
	assert.Equal(t, junction.PlaceID("place_01"), places[0].ID)
	assert.Equal(t, 1, mock.GetRequestCount())

	got, _ := mock.LastRequest()
	assert.Contains(t, got.Query, "filter[name][like]=Berlin")
}

func TestPlacesSearchMaxPages(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	second := strings.Replace(placeJSON, "place_01", "place_02", 1)
	mock.SetSequence("GET", "/places",
		testutil.NewJSONResponse(testutil.OffersPage("["+placeJSON+"]", "/places?page[after]=x")),
		testutil.NewJSONResponse(testutil.OffersPage("["+second+"]", "")),
	)

	out, err := executeCommand(t, "places", "search", "--max-pages", "1", "--max", "0", "-o", "json",
		"--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err, "reaching the page cap still prints what was read")

	var places []junction.Place
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 1)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestPlacesSearchInvalidNear(t *testing.T) {
	_, err := executeCommand(t, "places", "search", "--near", "52.5,13.4", "--api-key", "sk_test_cli")
	assert.ErrorContains(t, err, "LAT,LON,RADIUS_KM")
}

func TestTrainsSearch(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("POST", "/train-searches", testutil.NewCreatedResponse("/train-searches/ts_1/offers"))
	mock.SetResponse("GET", "/train-searches/ts_1/offers", testutil.NewJSONResponse(testutil.OffersPage(`[{
		"id": "offer_1",
		"expiresAt": "2026-05-01T10:00:00Z",
		"price": {"currency": "EUR", "amount": "49.90"},
		"segments": [{
			"origin": {"placeId": "place_a", "name": "Berlin Hbf"},
			"destination": {"placeId": "place_b", "name": "Hamburg Hbf"},
			"departureAt": "2026-05-02T08:00:00Z",
			"arrivalAt": "2026-05-02T10:00:00Z",
			"fare": {"marketingName": "Flexpreis"}
		}]
	}]`, "")))

	out, err := executeCommand(t, "trains", "search",
		"--from", "place_a", "--to", "place_b",
		"--departure", "2026-05-02", "--return", "2026-05-09T12:00:00Z",
		"--passenger", "1990-12-10", "--passenger", "2015-06-01",
		"--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err)
	assert.Contains(t, out, "offer_1")
	assert.Contains(t, out, "49.90 EUR")
	assert.Contains(t, out, "Flexpreis")

	create := mock.Requests()[0]
	var body map[string]any
	require.NoError(t, json.Unmarshal(create.Body, &body))
	assert.Equal(t, "2026-05-02T00:00:00Z", body["departureAfter"])
	assert.Equal(t, "2026-05-09T12:00:00Z", body["returnDepartureAfter"])
	assert.Len(t, body["passengerAges"], 2)
}

func TestFlightsSearchRequiresFlags(t *testing.T) {
	_, err := executeCommand(t, "flights", "search", "--from", "place_a", "--api-key", "sk_test_cli")
	assert.ErrorContains(t, err, "required flag")
}

func TestFlightsSearchInvalidDate(t *testing.T) {
	_, err := executeCommand(t, "flights", "search", "--from", "a", "--to", "b",
		"--departure", "next tuesday", "--passenger", "1990-12-10", "--api-key", "sk_test_cli")
	assert.ErrorContains(t, err, "invalid time")
}

func TestBookingsCreate(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("POST", "/bookings", testutil.NewJSONResponse(bookingJSON))

	file := filepath.Join(t.TempDir(), "passengers.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
- firstName: Ada
  lastName: Lovelace
  dateOfBirth: "1990-12-10"
  gender: female
  email: ada@example.com
`), 0o600))

	out, err := executeCommand(t, "bookings", "create", "--offer", "offer_1", "-p", file,
		"--idempotency-key", "idem-cli", "-o", "yaml",
		"--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err)
	assert.Contains(t, out, "id: booking_1")
	assert.Contains(t, out, "status: pending")

	got, _ := mock.LastRequest()
	assert.Equal(t, "idem-cli", got.Header.Get(junction.HeaderIdempotencyKey))
	assert.JSONEq(t, `{
		"offerId": "offer_1",
		"passengers": [{
			"dateOfBirth": "1990-12-10",
			"firstName": "Ada",
			"lastName": "Lovelace",
			"gender": "female",
			"email": "ada@example.com",
			"phoneNumber": ""
		}]
	}`, string(got.Body))
}

func TestBookingsCreateRejectsUnknownFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "passengers.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"firstName":"Ada","surname":"Lovelace"}]`), 0o600))

	_, err := executeCommand(t, "bookings", "create", "--offer", "offer_1", "-p", file, "--api-key", "sk_test_cli")
	assert.ErrorContains(t, err, "surname")
}

func TestCancellationFlow(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	refund := `{"id":"cancellation_1","status":"%s","bookingPrice":{"currency":"GBP","amount":"120.00"},"refundAmount":{"currency":"GBP","amount":"100.00"}}`
	mock.SetResponse("POST", "/bookings/booking_1/request-cancellation",
		testutil.NewJSONResponse(strings.Replace(refund, "%s", "requested", 1)))
	mock.SetResponse("POST", "/cancellations/cancellation_1/confirm",
		testutil.NewJSONResponse(strings.Replace(refund, "%s", "confirmed", 1)))

	out, err := executeCommand(t, "cancellations", "request", "booking_1", "--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err)
	assert.Contains(t, out, "cancellation_1")
	assert.Contains(t, out, "100.00 GBP")

	out, err = executeCommand(t, "cancel", "confirm", "cancellation_1", "-o", "json", "--api-key", "sk_test_cli", "--base-url", mock.URL())
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "confirmed"`)
}

func TestBookingsGetNotFound(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/bookings/missing", testutil.NewProblemResponse(404, "Not Found", "no such booking"))

	_, err := executeCommand(t, "bookings", "get", "missing", "--api-key", "sk_test_cli", "--base-url", mock.URL())
	assert.ErrorIs(t, err, junction.ErrNotFound)
	assert.ErrorContains(t, err, "no such booking")
}

func TestAuthLoginAndStatus(t *testing.T) {
	home := t.TempDir()

	out, err := cliRun{home: home, stdin: strings.NewReader("sk_live_abcdef123456\n")}.
		execute(t, "auth", "login", "--skip-verify")
	require.NoError(t, err)

	path := filepath.Join(home, ".junction", "config.yml")
	assert.Contains(t, out, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "api_key: sk_live_abcdef123456")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = cliRun{home: home}.execute(t, "auth", "status", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"apiKey": "sk_l***3456"`)
	assert.NotContains(t, out, "abcdef")
}

func TestAuthLoginEmptyKey(t *testing.T) {
	_, err := cliRun{stdin: strings.NewReader("\n")}.execute(t, "auth", "login", "--skip-verify")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestAuthLoginVerifiesKey(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places", testutil.NewProblemResponse(401, "Unauthorized", "invalid api key"))

	home := t.TempDir()
	_, err := cliRun{home: home, stdin: strings.NewReader("sk_bad_key_000000\n")}.
		execute(t, "auth", "login", "--base-url", mock.URL())
	assert.ErrorContains(t, err, "API key rejected")
	assert.ErrorIs(t, err, junction.ErrUnauthorized)

	_, statErr := os.Stat(filepath.Join(home, ".junction", "config.yml"))
	assert.True(t, os.IsNotExist(statErr), "rejected keys are not saved")
}

func TestSaveSettingKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://sandbox.example\noutput: json\n"), 0o600))

	require.NoError(t, saveSetting(path, keyAPIKey, "sk_new"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "base_url: https://sandbox.example")
	assert.Contains(t, string(raw), "output: json")
	assert.Contains(t, string(raw), "api_key: sk_new")
}

func TestParseGeoFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    *junction.GeoFilter
		wantErr bool
	}{
		{"52.52,13.405,25", &junction.GeoFilter{Latitude: 52.52, Longitude: 13.405, Radius: 25}, false},
		{" -33.9 , 151.2 , 10 ", &junction.GeoFilter{Latitude: -33.9, Longitude: 151.2, Radius: 10}, false},
		{"52.52,13.405", nil, true},
		{"north,13.405,25", nil, true},
		{"52.52,13.405,far", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseGeoFilter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", mask("short"))
	assert.Equal(t, "sk_t***7890", mask("sk_test_1234567890"))
}
