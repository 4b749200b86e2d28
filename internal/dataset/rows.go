// Package dataset loads the report datasets from parquet files.
package dataset

// DemandRow is one product allocation line for a store.
type DemandRow struct {
	StoreID       int64   `parquet:"name=store_id, type=INT64"`
	StoreName     string  `parquet:"name=store_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	CategoryID    int64   `parquet:"name=category_id, type=INT64"`
	GroupID       int64   `parquet:"name=group_id, type=INT64"`
	GroupName     string  `parquet:"name=group_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Product       string  `parquet:"name=product, type=BYTE_ARRAY, convertedtype=UTF8"`
	MinAllocation float64 `parquet:"name=min_allocation, type=DOUBLE"`
	Allocation    float64 `parquet:"name=allocation, type=DOUBLE"`
	Status        string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	UpdatedOn     string  `parquet:"name=updated_on, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// SalesRow is one product-group sales line for a store over a date range.
type SalesRow struct {
	StoreID           int64   `parquet:"name=store_id, type=INT64"`
	StoreName         string  `parquet:"name=store_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	CategoryID        int64   `parquet:"name=category_id, type=INT64"`
	GroupID           int64   `parquet:"name=group_id, type=INT64"`
	ProductGroup      string  `parquet:"name=product_group, type=BYTE_ARRAY, convertedtype=UTF8"`
	Demand            float64 `parquet:"name=demand, type=DOUBLE"`
	PO                float64 `parquet:"name=po, type=DOUBLE"`
	Received          float64 `parquet:"name=received, type=DOUBLE"`
	Sold              float64 `parquet:"name=sold, type=DOUBLE"`
	ReceivedPOPct     float64 `parquet:"name=received_po_pct, type=DOUBLE"`
	SoldReceivedPct   float64 `parquet:"name=sold_received_pct, type=DOUBLE"`
	CurrentAllocation float64 `parquet:"name=current_allocation, type=DOUBLE"`
	FromDate          string  `parquet:"name=from_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	ToDate            string  `parquet:"name=to_date, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// StoreRow is a store location.
type StoreRow struct {
	StoreID   int64   `parquet:"name=store_id, type=INT64"`
	Name      string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude  float64 `parquet:"name=latitude, type=DOUBLE"`
	Longitude float64 `parquet:"name=longitude, type=DOUBLE"`
}
