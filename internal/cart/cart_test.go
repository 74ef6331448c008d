package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/shopspring/decimal"
)

func mod(name, price string) database.SelectedModifier {
	return database.SelectedModifier{OptionName: name, OptionPrice: decimal.RequireFromString(price)}
}

func TestKey_CanonicalizesModifiers(t *testing.T) {
	id := uuid.New()
	a := Key(id, []database.SelectedModifier{mod("Extra Cheese", "0.5"), mod("No Onion", "0")})
	b := Key(id, []database.SelectedModifier{mod(" NoOnion ", "0"), mod("Extra  Cheese", "0.5")})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if Key(id, nil) != id.String() {
		t.Errorf("plain key = %q, want menu item id", Key(id, nil))
	}
	if Key(id, nil) == a {
		t.Error("modified and plain lines share a key")
	}
}

func TestAdd_MergesSameKeyAndNote(t *testing.T) {
	id := uuid.New()
	var c Cart
	base := Item{MenuItemID: id, Name: "Burger", BasePrice: decimal.RequireFromString("2.000"), Quantity: 1,
		SelectedModifiers: []database.SelectedModifier{mod("Cheese", "0.500")}}

	if err := c.Add(base); err != nil {
		t.Fatal(err)
	}
	second := base
	second.Quantity = 2
	if err := c.Add(second); err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("items = %+v, want one line of 3", c.Items)
	}

	noted := base
	noted.Notes = "well done"
	if err := c.Add(noted); err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 2 {
		t.Fatalf("lines = %d, want 2 after adding a noted line", len(c.Items))
	}
}

func TestAdd_RejectsZeroQuantity(t *testing.T) {
	var c Cart
	if err := c.Add(Item{MenuItemID: uuid.New(), Quantity: 0}); err != ErrInvalidQuantity {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestSetQuantity(t *testing.T) {
	var c Cart
	_ = c.Add(Item{MenuItemID: uuid.New(), Quantity: 1})
	_ = c.Add(Item{MenuItemID: uuid.New(), Quantity: 1})

	if err := c.SetQuantity(0, 4); err != nil {
		t.Fatal(err)
	}
	if c.Items[0].Quantity != 4 {
		t.Errorf("qty = %d, want 4", c.Items[0].Quantity)
	}
	if err := c.SetQuantity(0, 0); err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 1 {
		t.Errorf("lines = %d, want 1 after zero quantity", len(c.Items))
	}
	if err := c.SetQuantity(5, 1); err != ErrLineNotFound {
		t.Errorf("err = %v, want ErrLineNotFound", err)
	}
	if err := c.SetQuantity(0, -1); err != ErrInvalidQuantity {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestSubtotal(t *testing.T) {
	var c Cart
	_ = c.Add(Item{MenuItemID: uuid.New(), BasePrice: decimal.RequireFromString("2.000"), Quantity: 3,
		SelectedModifiers: []database.SelectedModifier{mod("Cheese", "0.500")}})
	if got := c.Subtotal(); !got.Equal(decimal.RequireFromString("7.500")) {
		t.Errorf("subtotal = %s, want 7.500", got)
	}
}

func TestConsolidate_MergesAcrossOrders(t *testing.T) {
	burger, tea := uuid.New(), uuid.New()
	line := func(id uuid.UUID, qty int32, note string) database.OrderItem {
		return database.OrderItem{MenuItemID: id, Name: "x", BasePrice: decimal.NewFromInt(1), Quantity: qty, Notes: note}
	}
	orders := []database.Order{
		{Items: []database.OrderItem{line(burger, 1, ""), line(tea, 2, "")}},
		{Items: []database.OrderItem{line(burger, 2, ""), line(burger, 1, "no salt")}},
	}

	c := Consolidate(orders)
	if len(c.Items) != 3 {
		t.Fatalf("lines = %d, want 3", len(c.Items))
	}
	if c.Items[0].MenuItemID != burger || c.Items[0].Quantity != 3 {
		t.Errorf("first line = %+v, want burger x3", c.Items[0])
	}
	if c.Items[2].Notes != "no salt" {
		t.Errorf("noted line = %+v", c.Items[2])
	}
}

func TestConsolidate_Empty(t *testing.T) {
	c := Consolidate(nil)
	if c.Items == nil || len(c.Items) != 0 {
		t.Errorf("items = %v, want empty non-nil slice", c.Items)
	}
}
