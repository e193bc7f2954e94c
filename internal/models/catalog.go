package models

// Item is a Xero product catalog item as exposed by the Items endpoint.
// Field names follow Xero's PascalCase JSON convention.
type Item struct {
	ItemID                  string       `json:"ItemID,omitempty"`
	Code                    string       `json:"Code"`
	Name                    string       `json:"Name,omitempty"`
	Description             string       `json:"Description,omitempty"`
	PurchaseDescription     string       `json:"PurchaseDescription,omitempty"`
	IsSold                  bool         `json:"IsSold,omitempty"`
	IsPurchased             bool         `json:"IsPurchased,omitempty"`
	IsTrackedAsInventory    bool         `json:"IsTrackedAsInventory,omitempty"`
	QuantityOnHand          float64      `json:"QuantityOnHand,omitempty"`
	SalesDetails            *ItemDetails `json:"SalesDetails,omitempty"`
	PurchaseDetails         *ItemDetails `json:"PurchaseDetails,omitempty"`
	UpdatedDateUTC          string       `json:"UpdatedDateUTC,omitempty"`
	InventoryAssetAccountCode string     `json:"InventoryAssetAccountCode,omitempty"`
}

// ItemDetails holds the sales or purchase pricing side of an item.
type ItemDetails struct {
	UnitPrice   float64 `json:"UnitPrice,omitempty"`
	AccountCode string  `json:"AccountCode,omitempty"`
	TaxType     string  `json:"TaxType,omitempty"`
}

// ItemsResponse is the Xero Items collection envelope.
type ItemsResponse struct {
	Items []Item `json:"Items"`
}
