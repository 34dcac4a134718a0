package models

// Row is a raw remote record keyed by column name.
type Row = map[string]any

type columnDecoder func(t *Title, v any)

// titleColumns is the single remote-column to Title-field mapping. FromRow and
// Merge both go through it, so the bulk loader, the change feed and direct
// fetches can never disagree on a field.
var titleColumns = map[string]columnDecoder{
	"title": func(t *Title, v any) {
		t.Title, _ = asString(v)
	},
	"year": func(t *Title, v any) {
		t.Year, _ = asInt(v)
	},
	"type": func(t *Title, v any) {
		s, _ := asString(v)
		t.Type = TitleType(s)
	},
	"duration": func(t *Title, v any) {
		t.Duration = intPtr(v)
	},
	"rating_average": func(t *Title, v any) {
		t.Rating, _ = asFloat(v)
	},
	"rating_count": func(t *Title, v any) {
		t.RatingCount, _ = asInt(v)
	},
	"view_count": func(t *Title, v any) {
		t.ViewCount, _ = asInt(v)
	},
	"genres": func(t *Title, v any) {
		t.Genres = stringsOrEmpty(v)
	},
	"moods": func(t *Title, v any) {
		t.Moods = stringsOrEmpty(v)
	},
	"tags": func(t *Title, v any) {
		t.Tags = stringsOrEmpty(v)
	},
	"description": func(t *Title, v any) {
		t.Description, _ = asString(v)
	},
	"logline": func(t *Title, v any) {
		t.Logline, _ = asString(v)
	},
	"poster_url": func(t *Title, v any) {
		if s, ok := asString(v); ok && s != "" {
			t.PosterURL = s
			return
		}
		t.PosterURL = DefaultPosterURL
	},
	"trailer_youtube_url": func(t *Title, v any) {
		t.TrailerURL = stringPtr(v)
	},
	"status": func(t *Title, v any) {
		s, _ := asString(v)
		t.Status = TitleStatus(s)
	},
	"production_company": func(t *Title, v any) {
		t.ProductionCompany, _ = asString(v)
	},
	"ai_model": func(t *Title, v any) {
		if s, ok := asString(v); ok && s != "" {
			t.AIModel = s
			return
		}
		t.AIModel = DefaultAIModel
	},
	"ai_prompt": func(t *Title, v any) {
		t.AIPrompt = stringPtr(v)
	},
	"ai_generation_date": func(t *Title, v any) {
		t.GenerationDate, _ = asTime(v)
	},
	"created_at": func(t *Title, v any) {
		t.CreatedAt, _ = asTime(v)
	},
	"dominant_color": func(t *Title, v any) {
		t.DominantColor = stringPtr(v)
	},
	"trending_score": func(t *Title, v any) {
		t.TrendingScore = floatPtr(v)
	},
	"release_date": func(t *Title, v any) {
		t.ReleaseDate, _ = asTime(v)
	},
	"seasons": func(t *Title, v any) {
		t.Seasons = intPtr(v)
	},
	"total_episodes": func(t *Title, v any) {
		t.TotalEpisodes = intPtr(v)
	},
	"aicinedb_film_id": func(t *Title, v any) {
		t.AICineDBFilmID = stringPtr(v)
	},
	"style_fingerprint": func(t *Title, v any) {
		t.StyleFingerprint, _ = asMap(v)
	},
	"shot_count": func(t *Title, v any) {
		t.ShotCount, _ = asInt(v)
	},
	"character_count": func(t *Title, v any) {
		t.CharacterCount, _ = asInt(v)
	},
	"scene_count": func(t *Title, v any) {
		t.SceneCount, _ = asInt(v)
	},
}

// FromRow converts a raw titles row into a Title. It never fails: columns that
// are missing, null or of an unexpected type take the field default.
func FromRow(row Row) Title {
	t := Title{
		Genres:      []string{},
		Moods:       []string{},
		Tags:        []string{},
		DirectorIDs: []string{},
		ProducerIDs: []string{},
		WriterIDs:   []string{},
		CastIDs:     []string{},
		PosterURL:   DefaultPosterURL,
		AIModel:     DefaultAIModel,
	}
	t.ID, _ = asString(row["id"])
	applyColumns(&t, row)
	return t
}

// Merge applies only the columns carried by row on top of t. Columns absent
// from row keep their current value; a column present with a null value takes
// the mapper default. The id column is ignored.
func Merge(t Title, row Row) Title {
	merged := t.Clone()
	applyColumns(&merged, row)
	return merged
}

// RowID extracts the id column of a raw row.
func RowID(row Row) (string, bool) {
	if row == nil {
		return "", false
	}
	id, ok := asString(row["id"])
	return id, ok && id != ""
}

// RowStatus extracts the status column of a raw row, if present.
func RowStatus(row Row) (TitleStatus, bool) {
	v, present := row["status"]
	if !present {
		return "", false
	}
	s, ok := asString(v)
	return TitleStatus(s), ok
}

func applyColumns(t *Title, row Row) {
	_, hasGenerationDate := row["ai_generation_date"]
	_, hasReleaseDate := row["release_date"]
	_, hasCreatedAt := row["created_at"]

	for col, v := range row {
		if decode, ok := titleColumns[col]; ok {
			decode(t, v)
		}
	}

	// both dates fall back to the creation timestamp
	if t.GenerationDate.IsZero() && (hasGenerationDate || hasCreatedAt) {
		t.GenerationDate = t.CreatedAt
	}
	if t.ReleaseDate.IsZero() && (hasReleaseDate || hasCreatedAt) {
		t.ReleaseDate = t.CreatedAt
	}
	if t.Type == TypeSeries {
		t.Duration = nil
	}
}

func stringsOrEmpty(v any) []string {
	if out, ok := asStrings(v); ok && out != nil {
		return out
	}
	return []string{}
}
