package document

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset() Dataset {
	return Dataset{
		"posts": {
			{"id": "1", "title": "first"},
			{"id": float64(7), "title": "numeric"},
		},
		"comments": {},
	}
}

func TestStore_Get_ByStringID(t *testing.T) {
	store := NewStore(testDataset())

	rec, err := store.Get("posts", "1")

	require.NoError(t, err)
	assert.Equal(t, "first", rec["title"])
}

func TestStore_Get_MatchesNumericID(t *testing.T) {
	store := NewStore(testDataset())

	rec, err := store.Get("posts", "7")

	require.NoError(t, err)
	assert.Equal(t, "numeric", rec["title"])
}

func TestStore_Get_UnknownCollection(t *testing.T) {
	store := NewStore(testDataset())

	_, err := store.Get("users", "1")

	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestStore_Get_UnknownRecord(t *testing.T) {
	store := NewStore(testDataset())

	_, err := store.Get("posts", "999")

	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_List_ReturnsInsertionOrder(t *testing.T) {
	store := NewStore(testDataset())

	records, err := store.List("posts")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0]["title"])
	assert.Equal(t, "numeric", records[1]["title"])
}

func TestStore_List_EmptyCollection(t *testing.T) {
	store := NewStore(testDataset())

	records, err := store.List("comments")

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_List_CopiesRecords(t *testing.T) {
	store := NewStore(testDataset())

	records, err := store.List("posts")
	require.NoError(t, err)
	records[0]["title"] = "mutated"

	rec, err := store.Get("posts", "1")
	require.NoError(t, err)
	assert.Equal(t, "first", rec["title"])
}

func TestStore_Create_GeneratesID(t *testing.T) {
	store := NewStore(testDataset())

	created, err := store.Create("comments", Record{"body": "hello"})

	require.NoError(t, err)
	id, ok := created["id"].(string)
	require.True(t, ok, "generated id should be a string")
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated id should be a UUID")
}

func TestStore_Create_KeepsProvidedID(t *testing.T) {
	store := NewStore(testDataset())

	created, err := store.Create("comments", Record{"id": "c-42", "body": "hi"})

	require.NoError(t, err)
	assert.Equal(t, "c-42", created["id"])

	rec, err := store.Get("comments", "c-42")
	require.NoError(t, err)
	assert.Equal(t, "hi", rec["body"])
}

func TestStore_Create_DuplicateID(t *testing.T) {
	store := NewStore(testDataset())

	_, err := store.Create("posts", Record{"id": "1", "title": "again"})

	assert.ErrorIs(t, err, ErrRecordExists)
}

func TestStore_Create_DuplicateNumericID(t *testing.T) {
	store := NewStore(testDataset())

	_, err := store.Create("posts", Record{"id": "7"})

	assert.ErrorIs(t, err, ErrRecordExists)
}

func TestStore_Create_UnknownCollection(t *testing.T) {
	store := NewStore(testDataset())

	_, err := store.Create("users", Record{"name": "eve"})

	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.NotContains(t, store.Collections(), "users")
}

func TestStore_Create_DetachesInput(t *testing.T) {
	store := NewStore(testDataset())
	input := Record{"id": "c-1", "tags": []interface{}{"a"}}

	_, err := store.Create("comments", input)
	require.NoError(t, err)

	input["tags"].([]interface{})[0] = "mutated"

	rec, err := store.Get("comments", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "a", rec["tags"].([]interface{})[0])
}

func TestStore_Replace_KeepsStoredID(t *testing.T) {
	store := NewStore(testDataset())

	updated, err := store.Replace("posts", "1", Record{"id": "hijack", "title": "rewritten"})

	require.NoError(t, err)
	assert.Equal(t, "1", updated["id"])
	assert.Equal(t, "rewritten", updated["title"])

	_, err = store.Get("posts", "hijack")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_Replace_DropsUnmentionedFields(t *testing.T) {
	store := NewStore(testDataset())

	updated, err := store.Replace("posts", "1", Record{"body": "only"})

	require.NoError(t, err)
	assert.Equal(t, "only", updated["body"])
	assert.NotContains(t, updated, "title")
}

func TestStore_Replace_UnknownRecord(t *testing.T) {
	store := NewStore(testDataset())

	_, err := store.Replace("posts", "999", Record{"title": "x"})

	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_Patch_MergesFields(t *testing.T) {
	store := NewStore(testDataset())

	updated, err := store.Patch("posts", "1", Record{"starred": true})

	require.NoError(t, err)
	assert.Equal(t, "first", updated["title"])
	assert.Equal(t, true, updated["starred"])
}

func TestStore_Patch_IDIsImmutable(t *testing.T) {
	store := NewStore(testDataset())

	updated, err := store.Patch("posts", "1", Record{"id": "other", "title": "patched"})

	require.NoError(t, err)
	assert.Equal(t, "1", updated["id"])

	rec, err := store.Get("posts", "1")
	require.NoError(t, err)
	assert.Equal(t, "patched", rec["title"])
}

func TestStore_Delete_PreservesOrder(t *testing.T) {
	store := NewStore(Dataset{
		"posts": {
			{"id": "a"},
			{"id": "b"},
			{"id": "c"},
		},
	})

	require.NoError(t, store.Delete("posts", "b"))

	records, err := store.List("posts")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0]["id"])
	assert.Equal(t, "c", records[1]["id"])
}

func TestStore_Delete_UnknownRecord(t *testing.T) {
	store := NewStore(testDataset())

	err := store.Delete("posts", "999")

	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_Snapshot_IsDeepCopy(t *testing.T) {
	store := NewStore(testDataset())

	snap := store.Snapshot()
	snap["posts"][0]["title"] = "mutated"
	snap["extra"] = []Record{}

	rec, err := store.Get("posts", "1")
	require.NoError(t, err)
	assert.Equal(t, "first", rec["title"])
	assert.NotContains(t, store.Collections(), "extra")
}

func TestStore_Collections_Sorted(t *testing.T) {
	store := NewStore(testDataset())

	assert.Equal(t, []string{"comments", "posts"}, store.Collections())
}

func TestDecodeJSON_RoundTrip(t *testing.T) {
	raw := []byte(`{"posts": [{"id": "1", "title": "hello"}], "tags": []}`)

	ds, err := DecodeJSON(raw)

	require.NoError(t, err)
	require.Contains(t, ds, "posts")
	require.Len(t, ds["posts"], 1)
	assert.Equal(t, "hello", ds["posts"][0]["title"])
	assert.Empty(t, ds["tags"])
}

func TestDecodeJSON_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"root is array", `[{"id": "1"}]`},
		{"root is scalar", `42`},
		{"collection is object", `{"posts": {"id": "1"}}`},
		{"collection is scalar", `{"posts": 1}`},
		{"item is scalar", `{"posts": [1, 2]}`},
		{"item is array", `{"posts": [["nested"]]}`},
		{"invalid json", `{"posts": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestDataset_Clone_Independent(t *testing.T) {
	original := testDataset()

	copied := original.Clone()
	copied["posts"][0]["title"] = "mutated"
	copied["posts"] = append(copied["posts"], Record{"id": "new"})

	assert.Equal(t, "first", original["posts"][0]["title"])
	assert.Len(t, original["posts"], 2)
}
