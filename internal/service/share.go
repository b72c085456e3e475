package service

// SharePayload is what the client hands to the platform share sheet.
type SharePayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

func Share(appName, appURL string) SharePayload {
	return SharePayload{
		Title: appName + ": Vibrational Alignment",
		Text:  "Discover your coherence level and manifest your intentions with " + appName + "!",
		URL:   appURL,
	}
}
