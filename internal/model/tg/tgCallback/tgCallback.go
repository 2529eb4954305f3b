package tgCallback

// Callback button uniques
const (
	Buy          string = "buy"  // data: asset id
	Sell         string = "sell" // data: asset id
	Deposit      string = "deposit"
	QuickDeposit string = "quick_deposit" // data: amount
	QuickFill    string = "quick_fill"    // data: percent
	Refresh      string = "refresh"
	Logout       string = "logout"
	Export       string = "export"
	Confirm      string = "confirm" // submits the input of the open dialog
	Cancel       string = "cancel"
	Login        string = "login"
	Register     string = "register"
)
