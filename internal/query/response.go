package query

// DataResponse is the paginated list envelope. Size is the number of returned items.
type DataResponse struct {
	Data  any    `json:"data"`
	Total int64  `json:"total"`
	Start int    `json:"start"`
	Sort  string `json:"sort"`
	Order string `json:"order"`
	Size  int    `json:"size"`
}

// Paginate converts items and wraps them with the page metadata.
func Paginate[T any, R any](page Page, total int64, items []T, conv func(T) R) DataResponse {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return DataResponse{
		Data:  out,
		Total: total,
		Start: page.Start,
		Sort:  page.Sort,
		Order: page.Order,
		Size:  len(out),
	}
}
