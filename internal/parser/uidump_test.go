package parser

import "testing"

const loginScreenFixture = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" content-desc="" clickable="false" bounds="[0,0][1080,2400]">
    <node index="0" text="" resource-id="com.example:id/username" class="android.widget.EditText" content-desc="" clickable="true" bounds="[60,800][1020,900]" />
    <node index="1" text="" resource-id="com.example:id/password" class="android.widget.EditText" content-desc="Password field" clickable="true" bounds="[60,950][1020,1050]" />
    <node index="2" text="Login" resource-id="com.example:id/login_button" class="android.widget.Button" content-desc="" clickable="true" bounds="[360,1140][720,1260]" />
  </node>
</hierarchy>
`

func TestParseUIHierarchy(t *testing.T) {
	nodes := ParseUIHierarchy(loginScreenFixture)
	if len(nodes) != 4 {
		t.Fatalf("got %d nodes, want 4", len(nodes))
	}

	var login *UINode
	var username *UINode
	for i := range nodes {
		switch nodes[i].Text {
		case "Login":
			login = &nodes[i]
		}
		if nodes[i].ResourceID == "com.example:id/username" {
			username = &nodes[i]
		}
	}
	if login == nil {
		t.Fatal("Login node not found")
	}
	if login.TapCenterX != 540 || login.TapCenterY != 1200 {
		t.Errorf("Login tap center = (%d,%d), want (540,1200)", login.TapCenterX, login.TapCenterY)
	}

	if username == nil {
		t.Fatal("username node not found")
	}
	if username.TapCenterX != 540 || username.TapCenterY != 850 {
		t.Errorf("username tap center = (%d,%d), want (540,850)", username.TapCenterX, username.TapCenterY)
	}
}

func TestFilterNodes(t *testing.T) {
	nodes := ParseUIHierarchy(loginScreenFixture)

	byText := FilterNodes(nodes, NodeFilter{Text: "login"})
	if len(byText) != 1 {
		t.Errorf("filter by text 'login' returned %d nodes, want 1", len(byText))
	}

	byClass := FilterNodes(nodes, NodeFilter{Class: "android.widget.Button"})
	if len(byClass) != 1 {
		t.Errorf("filter by class Button returned %d nodes, want 1", len(byClass))
	}

	combined := FilterNodes(nodes, NodeFilter{Text: "login", Class: "android.widget.EditText"})
	if len(combined) != 0 {
		t.Errorf("AND-combined text=login class=EditText returned %d nodes, want 0", len(combined))
	}
}

func TestParseUIHierarchySkipsUnparseableBounds(t *testing.T) {
	xml := `<node text="bad" bounds="not-bounds" />`
	nodes := ParseUIHierarchy(xml)
	if len(nodes) != 0 {
		t.Errorf("got %d nodes for unparseable bounds, want 0", len(nodes))
	}
}
