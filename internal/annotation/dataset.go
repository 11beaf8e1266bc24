package annotation

// Dataset describes one recognized benchmark corpus.
type Dataset struct {
	// Name is the dataset component of a conversation id, e.g. "redial".
	Name string `json:"name"`
	// Label is the display title used for charts.
	Label string `json:"label"`
	// ShortLabel is the compact column title used in CLI tables.
	ShortLabel string `json:"short_label"`
	// BaselineKey selects the dataset's group in the baselines document.
	BaselineKey string `json:"baseline_key"`
}

var datasets = []Dataset{
	{Name: "redial", Label: "CRSArena-Eval (ReDial)", ShortLabel: "ReDial", BaselineKey: "CRSArena-Eval_RD"},
	{Name: "opendialkg", Label: "CRSArena-Eval (OpenDialKG)", ShortLabel: "OpenDialKG", BaselineKey: "CRSArena-Eval_KG"},
}

// Datasets returns the recognized datasets in display order.
func Datasets() []Dataset {
	return append([]Dataset(nil), datasets...)
}

// DatasetNames returns the recognized dataset names in display order.
func DatasetNames() []string {
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.Name
	}
	return names
}

// LookupDataset returns the recognized dataset called name.
func LookupDataset(name string) (Dataset, bool) {
	for _, d := range datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// IsRecognized reports whether name is one of the recognized datasets.
func IsRecognized(name string) bool {
	_, ok := LookupDataset(name)
	return ok
}
