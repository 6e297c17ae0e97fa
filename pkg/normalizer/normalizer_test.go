package normalizer

import "testing"

func TestTaxStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ACTIVO", "ACTIVO"},
		{"INACTIVO", "INACTIVO"},
		{"2ACTIVO", "ACTIVO"}, // corrupt numeric prefix collapses
		{"2activo", "ACTIVO"},
		{" activo ", "ACTIVO"},
		{"1", "1"},
		{"2", "2"},
		{"3", "3"},
		{"10", "10"},
		{"11", "11"},
		{"12", "12"},
		{"13", "ND"}, // numeric but outside the catalog
		{"BAJA", "ND"},
		{"", "ND"},
		{"   ", "ND"},
		{"2INACTIVO", "ND"}, // only the ACTIVO prefix form is known
	}
	for _, c := range cases {
		if got := TaxStatus(c.in); got != c.want {
			t.Errorf("TaxStatus(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestDomicileCondition(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HABIDO", "HABIDO"},
		{"2HABIDO", "HABIDO"},
		{"habido", "HABIDO"},
		{"1", "1"},
		{"4", "4"},
		{"9", "9"},
		{"12", "12"},
		{"13", "ND"},
		{"0", "ND"},
		{"NO HABIDO", "ND"},
		{"", "ND"},
	}
	for _, c := range cases {
		if got := DomicileCondition(c.in); got != c.want {
			t.Errorf("DomicileCondition(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestCompanyType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"A", "A"},
		{"B", "B"},
		{"CE", "CE"},
		{"ce", "CE"},
		{"-", "-"},
		{"A7", "A"}, // trailing garbage, leading letter survives
		{"B9", "B"},
		{"AA", "A"},
		{"AB", "A"},
		{"E3", "E"},
		{"ZZ", "-"}, // no salvageable leading letter
		{"F", "-"},
		{"7A", "-"},
		{"", "-"},
		{"  ", "-"},
	}
	for _, c := range cases {
		if got := CompanyType(c.in); got != c.want {
			t.Errorf("CompanyType(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestSex(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HOMBRE", "HOMBRE"},
		{"MUJER", "MUJER"},
		{"mujer", "MUJER"},
		{" HOMBRE ", "HOMBRE"},
		{"M", "ND"},
		{"X", "ND"},
		{"", "ND"},
	}
	for _, c := range cases {
		if got := Sex(c.in); got != c.want {
			t.Errorf("Sex(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestSizeClass(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"C", "C"},
		{"M", "M"},
		{"G", "G"},
		{"B", "B"},
		{"g", "G"},
		{"XL", "C"},
		{"", "C"},
		{"?", "C"},
	}
	for _, c := range cases {
		if got := SizeClass(c.in); got != c.want {
			t.Errorf("SizeClass(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

// Every normalizer must return a catalog-accepted code for arbitrary input,
// the empty string included. Feed each one hostile values and check the
// output is inside its closed set.
func TestNormalizersAreTotal(t *testing.T) {
	hostile := []string{
		"", " ", "\t", "0", "-1", "999999", "ÁÉÍÓÚ", "ñ", "2ACTIVO2",
		"ACTIVO INACTIVO", "null", "NULL", "N/A", "....", "\x00", "💼",
		"averyveryverylongvaluethatmeansnothing",
	}
	statusSet := map[string]bool{
		"ACTIVO": true, "INACTIVO": true, "ND": true,
		"1": true, "2": true, "3": true, "10": true, "11": true, "12": true,
	}
	condSet := map[string]bool{"HABIDO": true, "ND": true,
		"1": true, "2": true, "3": true, "4": true, "5": true, "6": true,
		"7": true, "8": true, "9": true, "10": true, "11": true, "12": true,
	}
	typeSet := map[string]bool{"A": true, "B": true, "C": true, "D": true, "E": true, "CE": true, "-": true}
	sexSet := map[string]bool{"HOMBRE": true, "MUJER": true, "ND": true}
	sizeSet := map[string]bool{"C": true, "M": true, "G": true, "B": true}

	for _, in := range hostile {
		if got := TaxStatus(in); !statusSet[got] {
			t.Errorf("TaxStatus(%q) = %q, outside catalog", in, got)
		}
		if got := DomicileCondition(in); !condSet[got] {
			t.Errorf("DomicileCondition(%q) = %q, outside catalog", in, got)
		}
		if got := CompanyType(in); !typeSet[got] {
			t.Errorf("CompanyType(%q) = %q, outside catalog", in, got)
		}
		if got := Sex(in); !sexSet[got] {
			t.Errorf("Sex(%q) = %q, outside catalog", in, got)
		}
		if got := SizeClass(in); !sizeSet[got] {
			t.Errorf("SizeClass(%q) = %q, outside catalog", in, got)
		}
	}
}
