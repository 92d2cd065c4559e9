package core

// TagDetails is the details block of an /api/tags entry.
type TagDetails struct {
	Family        string `json:"family"`
	ParameterSize string `json:"parameter_size"`
	Quantization  string `json:"quantization"`
}

// TagModel is a single /api/tags entry. Size and Digest are always zero
// values because no model weights exist locally.
type TagModel struct {
	Name       string     `json:"name"`
	Model      string     `json:"model"`
	ModifiedAt string     `json:"modified_at"`
	Size       int64      `json:"size"`
	Digest     string     `json:"digest"`
	Details    TagDetails `json:"details"`
}

// TagsResponse is the /api/tags response body.
type TagsResponse struct {
	Models []TagModel `json:"models"`
}

// ModelsConfig holds the alias mapping configuration from models.json.
type ModelsConfig struct {
	Models map[string]string `json:"models"`
}
