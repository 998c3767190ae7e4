package provider

import (
	"regexp"
	"testing"

	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
)

func TestAccDomainDataSource(t *testing.T) {
	resource.Test(t, resource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: TestProviderConfig() + `data "samba_domain" "test" {}`,
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttrPair("data.samba_domain.test", "id", "data.samba_domain.test", "domain"),
					resource.TestCheckResourceAttrSet("data.samba_domain.test", "forest"),
					resource.TestCheckResourceAttrSet("data.samba_domain.test", "netbios_domain"),
					resource.TestCheckResourceAttrSet("data.samba_domain.test", "dc_netbios_name"),
					resource.TestMatchResourceAttr("data.samba_domain.test", "organizational_units.#", regexp.MustCompile(`^[1-9][0-9]*$`)),
					resource.TestMatchResourceAttr("data.samba_domain.test", "computers.#", regexp.MustCompile(`^[1-9][0-9]*$`)),
				),
			},
		},
	})
}
