package tools

func billingTools() []*Tool {
	return []*Tool{
		listTool("list_invoices",
			"List invoices",
			"/billing/v1/invoices",
			listOf("invoices", "invoices", "id",
				field{"Platform", "platform"},
				field{"Invoice date", "invoiceDate"},
				field{"Due date", "dueDate"},
				field{"Status", "status"},
				field{"Total", "totalAmount"},
				field{"Balance", "balanceAmount"},
				field{"Currency", "currency"},
				field{"URL", "url"},
			),
			nil,
		),
		getTool("get_invoice",
			"Get one invoice with its line items",
			"/billing/v1/invoices", "Invoice ID", nil),
		listTool("list_assets",
			"List billing assets such as cloud accounts, subscriptions and licenses",
			"/billing/v1/assets",
			listOf("assets", "assets", "name",
				field{"Type", "type"},
				field{"Quantity", "quantity"},
				field{"Created", "createTime"},
				field{"URL", "url"},
			),
			nil,
		),
	}
}
