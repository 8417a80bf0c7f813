package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResponse(t *testing.T) {
	t.Run("absent code defaults to 200", func(t *testing.T) {
		doc := `{"result":{"name":"Hello-World","owner":"octocat","topics":[]}}`

		resp, err := ValidateResponse(decodeJSON(t, doc), AsObject(ValidateRepoBrief))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		assert.Equal(t, "Hello-World", resp.Result.Name)
	})

	t.Run("explicit code is kept", func(t *testing.T) {
		doc := `{"code":404,"result":{"name":"n","owner":"o","topics":[]}}`

		resp, err := ValidateResponse(decodeJSON(t, doc), AsObject(ValidateRepoBrief))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.Code)
	})

	t.Run("missing result fails", func(t *testing.T) {
		_, err := ValidateResponse(decodeJSON(t, `{"code":200}`), AsObject(ValidateRepoBrief))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("result"))
	})

	t.Run("payload failures are nested under result", func(t *testing.T) {
		_, err := ValidateResponse(decodeJSON(t, `{"result":{"name":"n","topics":[]}}`), AsObject(ValidateRepoBrief))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("result.owner"))
	})

	t.Run("sequence payloads validate element-wise", func(t *testing.T) {
		doc := `{"result":[
			{"name":"a","owner":"o","topics":[]},
			{"name":"b","topics":[]}
		]}`

		_, err := ValidateResponse(decodeJSON(t, doc), AsList(ValidateRepoBrief))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("result[1].owner"))
	})
}

func TestEncodeResponse(t *testing.T) {
	brief := RepoBrief{Name: "Hello-World", Owner: "octocat", Topics: []string{"tutorial"}}

	t.Run("default code encodes as 200", func(t *testing.T) {
		encoded := OK(brief).EncodeWith(func(b RepoBrief) any { return b.Encode() })
		assert.Equal(t, 200, encoded["code"])
		assertRoundTrip(t, `{"code":200,"result":{"name":"Hello-World","owner":"octocat","topics":["tutorial"]}}`, encoded)
	})

	t.Run("round-trips through the parametrized validator", func(t *testing.T) {
		doc := `{"code":200,"result":{"month":"2023-01-01T00:00:00Z","count":5}}`

		resp, err := ValidateResponse(decodeJSON(t, doc), AsObject(ValidateMonthlyCount))
		require.NoError(t, err)
		assertRoundTrip(t, doc, resp.EncodeWith(func(m MonthlyCount) any { return m.Encode() }))
	})
}
