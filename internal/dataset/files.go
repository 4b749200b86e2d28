package dataset

// Files resolves the three report datasets through a shared Cache.
type Files struct {
	Cache      *Cache
	DemandPath string
	SalesPath  string
	StoresPath string
}

func (f *Files) Demand() ([]DemandRow, error) {
	return Load[DemandRow](f.Cache, f.DemandPath)
}

func (f *Files) Sales() ([]SalesRow, error) {
	return Load[SalesRow](f.Cache, f.SalesPath)
}

func (f *Files) Stores() ([]StoreRow, error) {
	return Load[StoreRow](f.Cache, f.StoresPath)
}

// Reload drops every cached dataset so the next request rereads the files.
func (f *Files) Reload() {
	f.Cache.Clear("")
}
