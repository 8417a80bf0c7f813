package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGFIBrief(t *testing.T) {
	t.Run("state and title keep all three wire states", func(t *testing.T) {
		docs := map[string]string{
			"absent":  `{"name":"n","owner":"o","number":42,"threshold":0.5,"probability":0.91,"last_updated":"2023-06-01T00:00:00Z"}`,
			"null":    `{"name":"n","owner":"o","number":42,"threshold":0.5,"probability":0.91,"last_updated":"2023-06-01T00:00:00Z","state":null,"title":null}`,
			"present": `{"name":"n","owner":"o","number":42,"threshold":0.5,"probability":0.91,"last_updated":"2023-06-01T00:00:00Z","state":"open","title":"Fix typo"}`,
		}

		for name, doc := range docs {
			t.Run(name, func(t *testing.T) {
				gfi, err := ValidateGFIBrief(decodeJSON(t, doc))
				require.NoError(t, err)
				assertRoundTrip(t, doc, gfi.Encode())
			})
		}
	})

	t.Run("probability outside [0,1] is accepted", func(t *testing.T) {
		// Range hardening was deliberately left to callers.
		gfi, err := ValidateGFIBrief(decodeJSON(t, `{"name":"n","owner":"o","number":1,"threshold":0.5,"probability":1.2,"last_updated":"2023-06-01T00:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, 1.2, gfi.Probability)
	})

	t.Run("every violation is reported at once", func(t *testing.T) {
		_, err := ValidateGFIBrief(decodeJSON(t, `{"owner":"o","number":"one","threshold":0.5,"probability":true,"last_updated":"2023-06-01T00:00:00Z"}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("name"))
		assert.True(t, verr.Has("number"))
		assert.True(t, verr.Has("probability"))
		assert.Len(t, verr.Fields, 3)
	})
}

func TestValidateTrainingResult(t *testing.T) {
	doc := `{
		"owner": "octocat",
		"name": "Hello-World",
		"issues_train": 120,
		"issues_test": 30,
		"n_resolved_issues": 140,
		"n_newcomer_resolved": 35,
		"accuracy": 0.87,
		"auc": null,
		"last_updated": "2023-06-01T00:00:00Z"
	}`

	r, err := ValidateTrainingResult(decodeJSON(t, doc))
	require.NoError(t, err)
	assert.Equal(t, Value(0.87), r.Accuracy)
	assert.True(t, r.AUC.Present)
	assert.False(t, r.AUC.Valid)
	assertRoundTrip(t, doc, r.Encode())

	t.Run("absent metrics stay absent", func(t *testing.T) {
		doc := `{"owner":"o","name":"n","issues_train":1,"issues_test":1,"n_resolved_issues":1,"n_newcomer_resolved":0,"last_updated":"2023-06-01T00:00:00Z"}`
		r, err := ValidateTrainingResult(decodeJSON(t, doc))
		require.NoError(t, err)
		assert.False(t, r.Accuracy.Present)
		assertRoundTrip(t, doc, r.Encode())
	})
}
