package items

import "time"

// Item represents an auction listing
type Item struct {
	ID          int64      `db:"id"`
	Name        string     `db:"nama_barang"`
	Description string     `db:"deskripsi"`
	StartPrice  float64    `db:"harga_awal"`
	OwnerID     int64      `db:"owner_id"`
	ImageURL    *string    `db:"image_url"`
	EndTime     *time.Time `db:"end_time"`
}

// ItemCommand carries every mutable field of an item.
// It is used for both create and full-replace update.
type ItemCommand struct {
	Name        string
	Description string
	StartPrice  float64
	OwnerID     int64
	ImageURL    *string
	EndTime     time.Time
}

// apply overwrites every mutable field of item with the command's values
func (c ItemCommand) apply(item *Item) {
	endTime := c.EndTime
	item.Name = c.Name
	item.Description = c.Description
	item.StartPrice = c.StartPrice
	item.OwnerID = c.OwnerID
	item.ImageURL = c.ImageURL
	item.EndTime = &endTime
}
