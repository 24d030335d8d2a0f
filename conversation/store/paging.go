package store

// PageSize is how many more messages each "load more" reveals
const PageSize = 25

// NextLimit grows a visible-message limit by one page, capped at total
func NextLimit(current, total int) int {
	return GrowLimit(current, total, PageSize)
}

// GrowLimit grows current by page, capped at total. A non-positive page
// counts as PageSize.
func GrowLimit(current, total, page int) int {
	if page <= 0 {
		page = PageSize
	}
	if current < 0 {
		current = 0
	}
	next := current + page
	if next > total {
		next = total
	}
	if next < current {
		return current
	}
	return next
}
