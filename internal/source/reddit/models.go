package reddit

// Listing is the envelope Reddit wraps every listing endpoint in.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	After    string  `json:"after"`
	Children []Child `json:"children"`
}

type Child struct {
	Kind string     `json:"kind"`
	Data Submission `json:"data"`
}

// Submission carries the subset of post fields the watcher uses.
type Submission struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"` // fullname, e.g. "t3_abc123"
	Title         string  `json:"title"`
	SelfText      string  `json:"selftext"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	LinkFlairText string  `json:"link_flair_text"`
	Permalink     string  `json:"permalink"`
	URL           string  `json:"url"`
	CreatedUTC    float64 `json:"created_utc"`
}

// aboutResponse is the envelope of /user/<name>/about.json.
type aboutResponse struct {
	Data struct {
		Name      string `json:"name"`
		LinkKarma int64  `json:"link_karma"`
	} `json:"data"`
}
