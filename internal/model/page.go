package model

// PageRequest 游标分页请求
// Token 为空表示第一页
type PageRequest struct {
	Token string `json:"pageToken"`
	Size  int    `json:"pageSize" validate:"min=1,max=200"`
}

// Page 游标分页结果
// NextPageToken 为空表示没有下一页
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
	HasMore       bool   `json:"hasMore"`
}

// SyncResult 增量同步结果
// FullSync 为 true 时 Changes 为空，客户端应拉取全量快照并以 LatestVersion 作为下次同步起点
type SyncResult[T any] struct {
	FullSync      bool    `json:"fullSync"`
	Changes       []T     `json:"changes"`
	LatestVersion Version `json:"latestVersion,string"`
}
