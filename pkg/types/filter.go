package types

// Filter - параметры выборки списков: поиск, фильтры по белому списку полей, сортировка и пагинация.
type Filter struct {
	Search         string                 `json:"search,omitempty"`
	Sort           map[string]string      `json:"sort,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	Page           int                    `json:"page"`
	WithPagination bool                   `json:"with_pagination"`
}

// http://localhost:8080/api/equipment?search=CAT&filter[state]=RESERVED&sort[deadline_date]=asc&limit=20&page=1&withPagination=true
